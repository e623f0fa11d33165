// campusmart 是校園二手市集的終端機客戶端，直接連線資料庫、Redis 與物件儲存。
//
//	campusmart [global flags] <command> [command flags]
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"
	"go.uber.org/zap"

	"campusmart/adapters/auth"
	"campusmart/adapters/logger"
	"campusmart/backend"
	"campusmart/config"
	"campusmart/market"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, openResources)
	stop()
	os.Exit(code)
}

func newGlobalFlags(stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet("campusmart", pflag.ContinueOnError)
	// 子命令之後的參數留給子命令解析
	flags.SetInterspersed(false)
	flags.SetOutput(stderr)
	config.RegisterFlags(flags)
	flags.String("profile", "default", "name of the stored sign-in session")
	flags.Bool("json", false, "print results as JSON")
	// CLI 預設只輸出警告以上的日誌
	if f := flags.Lookup("log-level"); f != nil {
		f.DefValue = "warn"
		_ = f.Value.Set("warn")
	}
	flags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: campusmart [global flags] <command> [command flags]")
		fmt.Fprintln(stderr, "\nCommands:")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %s\n", c.usage)
		}
		fmt.Fprintln(stderr, "\nGlobal flags:")
		flags.PrintDefaults()
	}
	return flags
}

// opener 建立外部資源，測試時替換成 sqlite 與 miniredis
type opener func(ctx context.Context, cfg config.Config, logger *zap.Logger) (resources, error)

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, open opener) int {
	flags := newGlobalFlags(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return 2
	}
	cmd, ok := findCommand(flags.Arg(0))
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", flags.Arg(0))
		flags.Usage()
		return 2
	}

	cfg, err := config.Load(flags)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	cfg.Log.Output = stderr
	log, syncLog, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer syncLog()

	res, err := open(ctx, cfg, log)
	if err != nil {
		log.Error("Fail to connect", zap.Error(err))
		fmt.Fprintln(stderr, "cannot reach the marketplace backend:", err)
		return 1
	}
	return execute(ctx, cmd, res, cfg, flags.Args()[1:], stdin, stdout, stderr, log)
}

// execute 建立 app 後執行子命令並回傳結束代碼
func execute(ctx context.Context, cmd command, res resources, cfg config.Config, args []string,
	stdin io.Reader, stdout, stderr io.Writer, log *zap.Logger,
) int {
	a, err := newApp(ctx, res, cfg, cfg.Viper.GetString("profile"), log)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Fail to close resources", zap.Error(err))
		}
	}()
	a.out = stdout
	a.in = bufio.NewReader(stdin)
	a.jsonMode = cfg.Viper.GetBool("json")

	if err := cmd.run(ctx, a, args); err != nil {
		printError(stderr, cmd, err)
		return exitCode(err)
	}
	return 0
}

func printError(w io.Writer, cmd command, err error) {
	if errors.Is(err, errUsage) {
		fmt.Fprintf(w, "%v\nUsage: campusmart %s\n", err, cmd.usage)
		return
	}
	var mErr *market.Error
	if errors.As(err, &mErr) && len(mErr.Fields) > 0 {
		fmt.Fprintln(w, "Please fix the following:")
		for _, f := range mErr.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Message)
		}
		return
	}
	fmt.Fprintln(w, "error:", err)
}

// exitCode 使用者可以自行修正的錯誤回傳 3，其餘為 1
func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return 2
	}
	for _, target := range []error{
		market.ErrValidation, market.ErrUnauthorized, market.ErrNotFound,
		auth.ErrInvalidInput, backend.ErrInvalidCredentials, backend.ErrEmailNotConfirmed,
		backend.ErrEmailTaken, backend.ErrSessionExpired,
	} {
		if errors.Is(err, target) {
			return 3
		}
	}
	return 1
}
