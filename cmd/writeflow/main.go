// Command writeflow はWriteFlowブログAPIサーバーを起動する。
//
// 使い方:
//
//	writeflow [serve|migrate|broadcast <postID>|healthcheck]
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/writeflow/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("writeflow exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
