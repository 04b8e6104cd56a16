package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はストアのスキーマを準備することを示す。
	CommandMigrate Command = "migrate"
	// CommandBroadcast は記事1件の通知を手動で購読者に送ることを示す。
	CommandBroadcast Command = "broadcast"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "broadcast":
		return CommandBroadcast
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// CommandArg はサブコマンドの最初の引数を返す。なければ空文字。
func CommandArg(args []string) string {
	if len(args) < 2 {
		return ""
	}
	return args[1]
}
