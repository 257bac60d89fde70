package services

import (
	"fmt"
	"time"

	"github.com/fyerfyer/doc-audit-system/internal/document"
	"github.com/fyerfyer/doc-audit-system/internal/models"
)

// perTypeSecondsPerMB 各文件类型每MB的预估处理秒数
// 经验值，不随运行时反馈调整
var perTypeSecondsPerMB = map[document.FileType]float64{
	document.FileTypePDF:  3.0,
	document.FileTypeDOCX: 2.0,
	document.FileTypeDOC:  2.5,
	document.FileTypeTXT:  1.0,
	document.FileTypeRTF:  1.5,
}

// defaultSecondsPerMB 未知类型的每MB预估处理秒数
const defaultSecondsPerMB = 2.0

// minEstimatedSeconds 预估总时长下限（秒），避免小文件的估算抖动
const minEstimatedSeconds = 10.0

// 阶段标签切换阈值，按已耗时占预估总时长的比例
const (
	extractingStageThreshold = 0.30
	chunkingStageThreshold   = 0.60
)

// ProgressEstimator 基于耗时的进度估算器
// 这是一个公开声明的近似：按文件大小和类型估算总时长，
// 用已耗时比例推算阶段和百分比，与流水线的实时进度事件完全解耦
type ProgressEstimator struct{}

// NewProgressEstimator 创建进度估算器
func NewProgressEstimator() *ProgressEstimator {
	return &ProgressEstimator{}
}

// Estimate 估算处理中文档的当前进度
// estimatedTotalSeconds = max(10, sizeMB × perTypeSecondsPerMB)
func (e *ProgressEstimator) Estimate(fileSize int64, fileType document.FileType, startedAt time.Time) ProcessingProgress {
	rate, ok := perTypeSecondsPerMB[fileType]
	if !ok {
		rate = defaultSecondsPerMB
	}

	sizeMB := float64(fileSize) / (1024 * 1024)
	totalSeconds := sizeMB * rate
	if totalSeconds < minEstimatedSeconds {
		totalSeconds = minEstimatedSeconds
	}

	elapsed := time.Since(startedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	fraction := elapsed / totalSeconds
	// 估算器无法确认完成，进度封顶在99%，完成与否以持久化状态为准
	if fraction > 0.99 {
		fraction = 0.99
	}

	var stage models.ProcessStage
	switch {
	case fraction < extractingStageThreshold:
		stage = models.StageExtracting
	case fraction < chunkingStageThreshold:
		stage = models.StageChunking
	default:
		stage = models.StageAnalyzing
	}

	remaining := int(totalSeconds - elapsed)
	if remaining < 0 {
		remaining = 0
	}

	return ProcessingProgress{
		BatchIndex:             -1,
		Stage:                  stage,
		Progress:               int(fraction * 100),
		Message:                fmt.Sprintf("Estimated progress based on elapsed time (%s)", stage),
		EstimatedTimeRemaining: remaining,
		UpdatedAt:              time.Now(),
	}
}
