package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/raphaelgruber/diarist/internal/db"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost matches the cost used for existing accounts.
const bcryptCost = 10

var registerPassword string

var registerCmd = &cobra.Command{
	Use:   "register <user>",
	Short: "Register a user with a password",
	Long: `Create a user account with a bcrypt-hashed password.
The password is read from --password or, if omitted, from the first line of stdin.

Examples:
  diarist register alice --password s3cret
  echo s3cret | diarist register alice`,
	Args: cobra.ExactArgs(1),
	RunE: runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerPassword, "password", "", "account password")
}

func runRegister(cmd *cobra.Command, args []string) error {
	password := registerPassword
	if password == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	if err := dbClient.RegisterUser(cmd.Context(), args[0], hash); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			return fmt.Errorf("user %s is already registered", args[0])
		}
		return fmt.Errorf("register user: %w", err)
	}
	fmt.Printf("Registered %s\n", args[0])
	return nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}
