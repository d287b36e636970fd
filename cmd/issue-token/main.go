// issue-token mints a channel token locally with the same validation,
// credential resolution and signing as the token server. Credentials are read
// from the AGORA_* environment variables (a .env file is loaded first) or
// from a YAML secrets file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/upb/channel-token-service/internal/observability"
	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services"
	"github.com/upb/channel-token-service/services/token"
	"github.com/upb/channel-token-service/signer"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var (
		channel     string
		uid         string
		role        string
		env         string
		ttl         time.Duration
		rtm         bool
		strict      bool
		secretsFile string
		envFile     string
		issuedAt    int64
		verbose     bool
	)

	flagSet := pflag.NewFlagSet("issue-token", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVarP(&channel, "channel", "c", "", "channel name (required)")
	flagSet.StringVarP(&uid, "uid", "u", "", "numeric user id (default 0)")
	flagSet.StringVarP(&role, "role", "r", "", "publisher or subscriber (default subscriber)")
	flagSet.StringVarP(&env, "env", "e", "", "prod or dev (default dev)")
	flagSet.DurationVar(&ttl, "ttl", token.DefaultWindow, "token lifetime")
	flagSet.BoolVar(&rtm, "rtm", true, "also issue a messaging token")
	flagSet.BoolVar(&strict, "strict", false, "reject unknown role and env values")
	flagSet.StringVar(&secretsFile, "secrets-file", "", "YAML secrets file (default: environment variables)")
	flagSet.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.Int64Var(&issuedAt, "at", 0, "issue as of this unix time, to reproduce an earlier token (default now)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("loading %s: %w", envFile, err)
		}
	}
	if secretsFile == "" {
		secretsFile = os.Getenv(secrets.EnvSecretsFilePath)
	}

	store, err := secrets.Load(secretsFile)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = observability.NewLogger("debug", "console"); err != nil {
			return err
		}
		defer logger.Sync()
	}

	raw := token.RawRequest{ChannelName: channel, Role: role, Env: env}
	if uid != "" {
		if raw.UID, err = json.Marshal(uid); err != nil {
			return err
		}
	}

	var opts []token.Option
	if issuedAt > 0 {
		opts = append(opts, token.WithClock(func() time.Time { return time.Unix(issuedAt, 0) }))
	}

	service := token.NewService(token.Config{
		Window:              ttl,
		IssueMessagingToken: rtm,
		StrictMapping:       strict,
	}, store, signer.NewJWTSigner(), logger, opts...)

	set, err := service.GenerateToken(context.Background(), raw, nil)
	if err != nil {
		return fmt.Errorf("%s: %s", services.GetErrorType(err).Status(), services.PublicMessage(err))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}
