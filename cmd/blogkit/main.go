// blogkit 是博客 API 的命令行客户端，会话保存在配置的存储里，多次调用之间保持登录。
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
