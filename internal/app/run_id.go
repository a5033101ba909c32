package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// GenerateRunID 生成本次运行ID
// 优先使用环境变量ATFUZZ_RUN_ID，否则生成UUID
func GenerateRunID() string {
	if runID := os.Getenv("ATFUZZ_RUN_ID"); runID != "" {
		return runID
	}

	// 格式：atfuzz-{hostname}-{uuid}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	shortUUID := uuid.New().String()[:8]
	return fmt.Sprintf("atfuzz-%s-%s", hostname, shortUUID)
}
