package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brizzbuzz/buildsecrets/internal/config"
	"github.com/brizzbuzz/buildsecrets/internal/errors"
	"github.com/brizzbuzz/buildsecrets/internal/manifest"
)

const tokenFileMode = 0600

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the 1Password service account token",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a service account token read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("path")
		if path == "" {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.OnePassword.TokenFile
		}
		return setToken(cmd.InOrStdin(), cmd.ErrOrStderr(), path)
	},
}

func init() {
	tokenSetCmd.Flags().String("path", "", fmt.Sprintf("where to store the token (default from config, else %s)", config.Default().OnePassword.TokenFile))
	tokenCmd.AddCommand(tokenSetCmd)
	rootCmd.AddCommand(tokenCmd)
}

// checkWritePermissions verifies we can write to the directory
func checkWritePermissions(path string) error {
	dir := filepath.Dir(path)

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.FileOperationError("Creating token directory", dir, "Failed to create directory", err)
		}
	}

	tmpFile := filepath.Join(dir, ".buildsecrets-write-test")
	f, err := os.OpenFile(tmpFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if os.IsPermission(err) {
			return errors.FileOperationError("Checking token directory", dir, "Insufficient permissions, try running with sudo", err)
		}
		return errors.FileOperationError("Checking token directory", dir, "Cannot write to directory", err)
	}
	_ = f.Close()
	_ = os.Remove(tmpFile)

	return nil
}

func setToken(in io.Reader, out io.Writer, path string) error {
	// Check permissions before prompting for input
	if err := checkWritePermissions(path); err != nil {
		return err
	}

	fmt.Fprintf(out, "Please paste your 1Password service account token (press Enter when done):\n")

	token, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return errors.TokenError("Failed to read token from input", path, err)
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return errors.TokenError("Token cannot be empty", path, nil)
	}

	if err := manifest.WriteFile(path, []byte(token), tokenFileMode); err != nil {
		return errors.FileOperationError("Writing token file", path, "Failed to write token file", err)
	}

	fmt.Fprintf(out, "Token successfully stored at %s\n", path)
	return nil
}
