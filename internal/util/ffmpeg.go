package util

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// VideoInfo 题目视频的基本信息
type VideoInfo struct {
	Duration float64 `json:"duration"` // 秒
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// ProbeVideo 通过 ffprobe 读取时长与分辨率
func ProbeVideo(videoPath string) (*VideoInfo, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, fmt.Errorf("video file not found: %w", err)
	}

	out, err := ffmpeg.Probe(videoPath)
	if err != nil {
		return nil, fmt.Errorf("probe video: %w", err)
	}

	var result struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Width     int    `json:"width"`
			Height    int    `json:"height"`
		} `json:"streams"`
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		return nil, fmt.Errorf("parse probe output: %w", err)
	}

	info := &VideoInfo{}
	for _, s := range result.Streams {
		if s.CodecType == "video" {
			info.Width, info.Height = s.Width, s.Height
			break
		}
	}
	info.Duration, _ = strconv.ParseFloat(result.Format.Duration, 64)
	return info, nil
}

// ThumbnailOffset 取第 1 秒，短视频取中点
func ThumbnailOffset(duration float64) string {
	offset := 1.0
	if duration > 0 && duration < 2 {
		offset = duration / 2
	}
	return strconv.FormatFloat(offset, 'f', 2, 64)
}

// GenerateThumbnail 截取一帧作为封面
func GenerateThumbnail(videoPath, thumbnailPath, timeOffset string) error {
	if err := os.MkdirAll(filepath.Dir(thumbnailPath), 0755); err != nil {
		return fmt.Errorf("create thumbnail dir: %w", err)
	}
	return ffmpeg.Input(videoPath, ffmpeg.KwArgs{"ss": timeOffset}).
		Output(thumbnailPath, ffmpeg.KwArgs{
			"vframes": "1",
			"q:v":     "2",
		}).
		OverWriteOutput().
		Run()
}
