package cli

import (
	"errors"
	"fmt"
	"io"
)

// ExitCodeUsage 参数或配置错误时的退出码
const ExitCodeUsage = 2

// ExitError 携带进程退出码，由 main 负责 os.Exit
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// exitCode 将命令返回的错误转换为退出码；非 ExitError 会先输出到 stderr
func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return ExitCodeUsage
}
