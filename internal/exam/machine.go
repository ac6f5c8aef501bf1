package exam

import (
	"fmt"
	"math"
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseInProgress Phase = "in_progress"
	PhaseCompleted  Phase = "completed"
)

type CompletionReason string

const (
	ReasonFinished    CompletionReason = "finished"
	ReasonTimeExpired CompletionReason = "time_expired"
)

// RecordedAnswer 单题作答记录
type RecordedAnswer struct {
	Response         Response
	IsCorrect        bool
	TimeSpentSeconds int
}

// Snapshot 可持久化的状态机快照
type Snapshot struct {
	Phase        Phase
	CurrentIndex int
	StartedAt    time.Time
	EnteredAt    time.Time
	EndedAt      *time.Time
	Reason       CompletionReason
	Answers      map[string]RecordedAnswer
	Flags        map[string]bool
	TimeSpent    map[string]int // 每道题累计停留秒数，含未作答的题
}

// Machine 一次答题的状态机：idle -> in_progress -> completed
type Machine struct {
	mu        sync.Mutex
	questions []Question
	index     map[string]int

	phase     Phase
	current   int
	startedAt time.Time
	enteredAt time.Time
	endedAt   *time.Time
	reason    CompletionReason
	answers   map[string]RecordedAnswer
	flags     map[string]bool
	spent     map[string]int
}

func NewMachine(questions []Question) *Machine {
	idx := make(map[string]int, len(questions))
	for i, q := range questions {
		idx[q.ID] = i
	}
	return &Machine{
		questions: questions,
		index:     idx,
		phase:     PhaseIdle,
		answers:   make(map[string]RecordedAnswer),
		flags:     make(map[string]bool),
		spent:     make(map[string]int),
	}
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Machine) Questions() []Question {
	return m.questions
}

// Start 开始答题，清空作答与标记
func (m *Machine) Start(now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, m.phase)
	}
	if len(m.questions) == 0 {
		return ErrNoQuestions
	}
	m.phase = PhaseInProgress
	m.current = 0
	m.startedAt = now
	m.enteredAt = now
	m.endedAt = nil
	m.reason = ""
	m.answers = make(map[string]RecordedAnswer)
	m.flags = make(map[string]bool)
	m.spent = make(map[string]int)
	return nil
}

// GoTo 跳转到指定题目，已作答内容保持不变
func (m *Machine) GoTo(i int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return fmt.Errorf("%w: navigate in %s", ErrInvalidTransition, m.phase)
	}
	if i < 0 || i >= len(m.questions) {
		return ErrQuestionOutOfRange
	}
	m.leaveLocked(now)
	m.current = i
	return nil
}

// leaveLocked 把进入当前题目以来的时间记到该题上
func (m *Machine) leaveLocked(now time.Time) {
	if m.phase != PhaseInProgress || len(m.questions) == 0 {
		return
	}
	qid := m.questions[m.current].ID
	if !m.enteredAt.IsZero() && now.After(m.enteredAt) {
		m.spent[qid] += int(now.Sub(m.enteredAt) / time.Second)
	}
	if a, ok := m.answers[qid]; ok {
		a.TimeSpentSeconds = m.spent[qid]
		m.answers[qid] = a
	}
	m.enteredAt = now
}

func (m *Machine) Next(now time.Time) error {
	return m.GoTo(m.CurrentIndex()+1, now)
}

func (m *Machine) Prev(now time.Time) error {
	return m.GoTo(m.CurrentIndex()-1, now)
}

// Record 记录（或覆盖）当前题目的作答
func (m *Machine) Record(r Response, now time.Time) (RecordedAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return RecordedAnswer{}, fmt.Errorf("%w: answer in %s", ErrInvalidTransition, m.phase)
	}
	q := m.questions[m.current]
	ok, err := Grade(q, r)
	if err != nil {
		return RecordedAnswer{}, err
	}

	m.leaveLocked(now)
	ans := RecordedAnswer{
		Response:         r,
		IsCorrect:        ok,
		TimeSpentSeconds: m.spent[q.ID],
	}
	m.answers[q.ID] = ans
	return ans, nil
}

// RecordFor 跳转到题目后作答，离开的题目照常计时
func (m *Machine) RecordFor(questionID string, r Response, now time.Time) (RecordedAnswer, error) {
	m.mu.Lock()
	i, ok := m.index[questionID]
	m.mu.Unlock()
	if !ok {
		return RecordedAnswer{}, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if m.CurrentIndex() != i {
		if err := m.GoTo(i, now); err != nil {
			return RecordedAnswer{}, err
		}
	}
	return m.Record(r, now)
}

// ToggleFlag 切换题目标记，返回新状态
func (m *Machine) ToggleFlag(questionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return false, fmt.Errorf("%w: flag in %s", ErrInvalidTransition, m.phase)
	}
	if _, ok := m.index[questionID]; !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	v := !m.flags[questionID]
	if v {
		m.flags[questionID] = true
	} else {
		delete(m.flags, questionID)
	}
	return v, nil
}

// Unanswered 返回未作答题目的下标
func (m *Machine) Unanswered() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unansweredLocked()
}

func (m *Machine) unansweredLocked() []int {
	var out []int
	for i, q := range m.questions {
		if _, ok := m.answers[q.ID]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// Finish 交卷；存在未答题目且未确认时返回 *UnansweredError
func (m *Machine) Finish(confirm bool, now time.Time) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return Summary{}, fmt.Errorf("%w: finish from %s", ErrInvalidTransition, m.phase)
	}
	if missing := m.unansweredLocked(); len(missing) > 0 && !confirm {
		return Summary{}, &UnansweredError{Indexes: missing}
	}
	m.completeLocked(ReasonFinished, now)
	return m.summaryLocked(), nil
}

// Expire 计时归零
func (m *Machine) Expire(now time.Time) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseInProgress {
		return Summary{}, fmt.Errorf("%w: expire from %s", ErrInvalidTransition, m.phase)
	}
	m.completeLocked(ReasonTimeExpired, now)
	return m.summaryLocked(), nil
}

func (m *Machine) completeLocked(reason CompletionReason, now time.Time) {
	m.leaveLocked(now)
	m.phase = PhaseCompleted
	m.reason = reason
	end := now
	m.endedAt = &end
}

// Retry 已完成的答题重新回到 idle
func (m *Machine) Retry() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseCompleted {
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, m.phase)
	}
	m.phase = PhaseIdle
	m.current = 0
	m.startedAt = time.Time{}
	m.enteredAt = time.Time{}
	m.endedAt = nil
	m.reason = ""
	m.answers = make(map[string]RecordedAnswer)
	m.flags = make(map[string]bool)
	m.spent = make(map[string]int)
	return nil
}

func (m *Machine) Answer(questionID string) (RecordedAnswer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[questionID]
	return a, ok
}

func (m *Machine) Flagged(questionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[questionID]
}

// TimeSpent 题目累计停留秒数
func (m *Machine) TimeSpent(questionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spent[questionID]
}

func (m *Machine) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summaryLocked()
}

func (m *Machine) summaryLocked() Summary {
	s := Summary{
		Total:   len(m.questions),
		Reason:  m.reason,
		Results: make([]QuestionResult, 0, len(m.questions)),
	}
	for _, q := range m.questions {
		a, answered := m.answers[q.ID]
		res := QuestionResult{
			QuestionID: q.ID,
			Answered:   answered,
			IsCorrect:  answered && a.IsCorrect,
			Flagged:    m.flags[q.ID],
			TimeSpent:  m.spent[q.ID],
		}
		if answered {
			s.Answered++
		}
		if res.IsCorrect {
			s.Correct++
		}
		if res.Flagged {
			s.Flagged++
		}
		s.Results = append(s.Results, res)
	}
	s.Percentage = Percentage(s.Correct, s.Total)
	if m.endedAt != nil && !m.startedAt.IsZero() {
		s.Duration = m.endedAt.Sub(m.startedAt)
	}
	return s
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	answers := make(map[string]RecordedAnswer, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	flags := make(map[string]bool, len(m.flags))
	for k, v := range m.flags {
		flags[k] = v
	}
	spent := make(map[string]int, len(m.spent))
	for k, v := range m.spent {
		spent[k] = v
	}
	return Snapshot{
		Phase:        m.phase,
		CurrentIndex: m.current,
		StartedAt:    m.startedAt,
		EnteredAt:    m.enteredAt,
		EndedAt:      m.endedAt,
		Reason:       m.reason,
		Answers:      answers,
		Flags:        flags,
		TimeSpent:    spent,
	}
}

// Restore 用持久化的快照恢复状态机，未知题目的作答会被丢弃
func (m *Machine) Restore(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch s.Phase {
	case PhaseIdle, PhaseInProgress, PhaseCompleted:
	default:
		return fmt.Errorf("%w: restore unknown phase %q", ErrInvalidTransition, s.Phase)
	}
	if s.CurrentIndex < 0 || (len(m.questions) > 0 && s.CurrentIndex >= len(m.questions)) {
		return ErrQuestionOutOfRange
	}

	m.phase = s.Phase
	m.current = s.CurrentIndex
	m.startedAt = s.StartedAt
	m.enteredAt = s.EnteredAt
	m.endedAt = s.EndedAt
	m.reason = s.Reason
	m.answers = make(map[string]RecordedAnswer, len(s.Answers))
	for k, v := range s.Answers {
		if _, ok := m.index[k]; ok {
			m.answers[k] = v
		}
	}
	m.flags = make(map[string]bool, len(s.Flags))
	for k, v := range s.Flags {
		if _, ok := m.index[k]; ok && v {
			m.flags[k] = true
		}
	}
	m.spent = make(map[string]int, len(s.TimeSpent))
	for k, v := range s.TimeSpent {
		if _, ok := m.index[k]; ok {
			m.spent[k] = v
		}
	}
	for k, a := range m.answers {
		if _, ok := m.spent[k]; !ok {
			m.spent[k] = a.TimeSpentSeconds
		}
	}
	return nil
}

// Percentage = round(100*k/N)，N 为 0 时返回 0
func Percentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}
