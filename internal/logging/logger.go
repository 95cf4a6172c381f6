package logging

import (
	"log"
	"os"
)

// New 创建一个基础日志器，后续可替换为结构化日志实现。
func New() *log.Logger {
	return log.New(os.Stdout, "filegate ", log.LstdFlags|log.Lshortfile)
}
