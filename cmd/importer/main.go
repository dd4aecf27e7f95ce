package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"fanwiki/internal/importer"
	"fanwiki/internal/logger"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Bulk import the wiki's markdown archive into a running server",
	Long: `importer walks the src/_art-archive, src/_characters and src/_stories folders
of the wiki source tree and uploads every page through the server's two-step
upload endpoints.

It should be used freely against test servers and only once against the
final site.

Examples:
  importer --root ../pd-archive --server http://localhost:8080 --token $IMPORT_TOKEN
  IMPORT_TOKEN=... importer`,
	SilenceUsage: true,
	RunE:         runImporter,
}

func init() {
	rootCmd.Flags().String("root", "", "Path to the wiki source tree (prompted when empty)")
	rootCmd.Flags().String("server", "", "Base URL of the wiki server (prompted when empty)")
	rootCmd.Flags().String("token", "", "Import token issued at /user/import-token (default $IMPORT_TOKEN)")
	rootCmd.Flags().String("log-level", "info", "Log level")
}

func runImporter(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	level, _ := cmd.Flags().GetString("log-level")
	if _, err := logger.New(level, "console"); err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	root, _ := cmd.Flags().GetString("root")
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = os.Getenv("IMPORT_TOKEN")
	}

	fmt.Println("Hello! Welcome to the wiki import tool!")

	stdin := bufio.NewReader(os.Stdin)
	var err error
	if root == "" {
		if root, err = prompt(stdin, "Where is the wiki source folder?"); err != nil {
			return err
		}
	}
	if info, err := os.Stat(root); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a folder", root)
	}

	if server == "" {
		if server, err = prompt(stdin, "What is the server url?"); err != nil {
			return err
		}
	}
	if u, err := url.Parse(server); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid server url %q", server)
	}
	if token == "" {
		fmt.Println("No import token given; uploads will be rejected unless the server accepts guests.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := importer.NewRunner(root, importer.NewClient(server, token))
	return importer.NewMenu(stdin, os.Stdout, root, runner).Run(ctx)
}

func prompt(in *bufio.Reader, question string) (string, error) {
	fmt.Println(question)
	fmt.Print("> ")
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		if err != nil {
			return "", errors.New("no answer given")
		}
		return "", fmt.Errorf("%s cannot be empty", strings.TrimSuffix(question, "?"))
	}
	return line, nil
}
