package util

import (
	"exam_practice_backend/internal/exam"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators 注册自定义校验标签，启动时调用一次
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("questiontype", func(fl validator.FieldLevel) bool {
		return exam.QuestionType(fl.Field().String()).Valid()
	})
}
