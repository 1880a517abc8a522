// Package transport 定义 app 管理的长期运行组件接口。
package transport

import (
	"context"
	"net"
	"regexp"
	"strconv"
)

// Server Run 阻塞到停止；Shutdown 让 Run 返回
type Server interface {
	Run() error
	Shutdown(context.Context) error
}

var hostname = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9.-]{0,251}[A-Za-z0-9])?$`)

// ValidAddr host:port，host 可以为空，端口 0 表示随机
func ValidAddr(addr string) bool {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if p, err := strconv.Atoi(port); err != nil || p < 0 || p > 65535 {
		return false
	}
	return host == "" || net.ParseIP(host) != nil || hostname.MatchString(host)
}
