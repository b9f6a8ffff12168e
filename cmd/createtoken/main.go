package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/RodrigoCConte/monofloor-admin-sub002/config"
	"github.com/RodrigoCConte/monofloor-admin-sub002/pkg/token"
)

// 为现场设备或联调签发工人令牌，只依赖 JWT_SECRET 等令牌配置
func main() {
	workerID := flag.Int64("worker", 0, "worker ID the token is issued for")
	flag.Parse()

	if *workerID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: createtoken -worker <id>")
		os.Exit(2)
	}

	if config.Cfg.JWTSecret == "" {
		fmt.Fprintln(os.Stderr, "JWT_SECRET is required")
		os.Exit(1)
	}
	if err := token.Init(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	access, refresh, expiresIn, err := token.GenerateTokenPair(*workerID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("access_token=%s\nrefresh_token=%s\nexpires_in=%d\n", access, refresh, expiresIn)
}
