package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/mlquiz/internal/account"
	appI18n "github.com/pavelanni/mlquiz/internal/i18n"
	"github.com/pavelanni/mlquiz/internal/model"
	"github.com/pavelanni/mlquiz/internal/questions"
	"github.com/pavelanni/mlquiz/internal/store"
)

func main() {
	// MLQUIZ_* settings may also come from a .env file in the working
	// directory. Variables already set in the environment win.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mlquiz",
		Short: "Machine learning quiz with LLM-graded free-text answers",
	}

	serve := serveCmd()
	root.AddCommand(serve, adminCmd(), exportCmd(), questionsCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `mlquiz --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addCommonFlags registers the flags every command needs to reach the
// database and the question bank.
func addCommonFlags(f *pflag.FlagSet) {
	f.String("db-driver", store.DriverSQLite, "Database driver (sqlite, postgres)")
	f.String("db", "mlquiz.db", "SQLite database path or PostgreSQL URL")
	f.StringP("questions", "q", "", "Question bank file, YAML or JSON (default: embedded ML bank)")
	f.String("admin-username", "admin", "Reserved administrator username")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}
	create := &cobra.Command{
		Use:   "create",
		Short: "Create the administrator account",
		RunE:  runAdminCreate,
	}
	f := create.Flags()
	addCommonFlags(f)
	f.String("admin-password", "", "Administrator password (or set MLQUIZ_ADMIN_PASSWORD)")
	cmd.AddCommand(create)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all submissions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	addCommonFlags(f)
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func questionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Print the question bank without reference answers",
		RunE:  runQuestions,
	}
	addCommonFlags(cmd.Flags())
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("MLQUIZ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mlquiz")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/mlquiz")
	v.AddConfigPath("/etc/mlquiz")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func openStore(ctx context.Context, v *viper.Viper) (*store.Store, error) {
	db, err := store.New(ctx, v.GetString("db-driver"), v.GetString("db"))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func loadBank(v *viper.Viper) (*questions.Bank, error) {
	path := v.GetString("questions")
	if path == "" {
		return questions.Default()
	}
	bank, err := questions.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	slog.Info("loaded question bank", "path", path, "count", bank.Len())
	return bank, nil
}

// checkBankFingerprint records the bank in use and warns when it differs
// from the one earlier submissions were graded against.
func checkBankFingerprint(ctx context.Context, db *store.Store, bank *questions.Bank) error {
	stored, err := db.GetMetadata(ctx, store.MetaBankFingerprint)
	if err != nil {
		return fmt.Errorf("read bank fingerprint: %w", err)
	}
	current := bank.Fingerprint()
	if stored == current {
		return nil
	}
	if stored != "" {
		slog.Warn("question bank changed since earlier submissions were graded",
			"stored", stored, "current", current)
	}
	return db.SetMetadata(ctx, store.MetaBankFingerprint, current)
}

func runAdminCreate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	password := v.GetString("admin-password")
	if password == "" {
		return errors.New("admin password is required: set --admin-password flag or MLQUIZ_ADMIN_PASSWORD env var")
	}

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	accounts := account.New(db, v.GetString("admin-username"))
	a, err := accounts.ProvisionAdmin(ctx, accounts.AdminUsername(), password)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created administrator %q\n", a.Username)
	return nil
}

// seedAdmin creates the administrator when a password is configured and
// the account does not exist yet.
func seedAdmin(ctx context.Context, accounts *account.Service, password string) error {
	if password == "" {
		return nil
	}
	_, err := accounts.ProvisionAdmin(ctx, accounts.AdminUsername(), password)
	if errors.Is(err, model.ErrDuplicateUsername) {
		return nil
	}
	return err
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := openStore(ctx, v)
	if err != nil {
		return err
	}
	defer db.Close()

	bank, err := loadBank(v)
	if err != nil {
		return err
	}
	export, err := buildExport(ctx, db, bank)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}

func buildExport(ctx context.Context, db *store.Store, bank *questions.Bank) (model.QuizExport, error) {
	results, err := db.ExportSubmissions(ctx)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("export submissions: %w", err)
	}
	users := make(map[string]struct{})
	for _, r := range results {
		users[r.Username] = struct{}{}
	}
	fingerprint, err := db.GetMetadata(ctx, store.MetaBankFingerprint)
	if err != nil {
		return model.QuizExport{}, fmt.Errorf("read bank fingerprint: %w", err)
	}
	if fingerprint == "" {
		fingerprint = bank.Fingerprint()
	}
	return model.QuizExport{
		ExportedAt:      time.Now().UTC(),
		BankFingerprint: fingerprint,
		NumQuestions:    bank.Len(),
		Users:           len(users),
		Results:         results,
	}, nil
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	bank, err := loadBank(v)
	if err != nil {
		return err
	}
	if err := appI18n.Init(v.GetString("lang")); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, appI18n.Tp(context.Background(), "QuestionsInBank", bank.Len()))
	for _, q := range bank.Public() {
		fmt.Fprintf(out, "%2d. %s\n", q.Index+1, q.Text)
	}
	fmt.Fprintf(out, "fingerprint: %s\n", bank.Fingerprint())
	return nil
}
