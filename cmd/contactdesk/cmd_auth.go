package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	authUsername string
	authPassword string
)

// loginCmd signs in and stores the session
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the contacts service",
	RunE:  runLogin,
}

// registerCmd creates an account
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the contacts service",
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE:  runLogout,
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and role",
	RunE:  runWhoami,
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&authUsername, "username", "u", "", "Username (prompted when empty)")
		c.Flags().StringVarP(&authPassword, "password", "p", "", "Password (read from stdin when empty)")
	}
}

func credentials() (string, string, error) {
	user, pass := authUsername, authPassword
	if user == "" {
		user = readLine(stdin, "Username: ")
	}
	if pass == "" {
		pass = readLine(stdin, "Password: ")
	}
	if user == "" || pass == "" {
		return "", "", fmt.Errorf("username and password are required")
	}
	return user, pass, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	user, pass, err := credentials()
	if err != nil {
		return err
	}
	a := openApp(cliOptions(false)...)
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()

	err = a.ctl.Login(ctx, user, pass)
	s := a.sess.Current()
	if err != nil && (!s.Valid() || s.Username != user) {
		return fmt.Errorf("sign in failed")
	}
	logger.Debug("signed in", zap.String("user", s.Username), zap.String("role", string(s.Role)))
	fmt.Printf("Signed in as %s (%s). %d contacts.\n", s.Username, s.Role, a.ctl.Store().Len())
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	user, pass, err := credentials()
	if err != nil {
		return err
	}
	a := openApp(cliOptions(false)...)
	defer a.Close()

	ctx, cancel := commandContext()
	defer cancel()
	if err := a.ctl.Register(ctx, user, pass); err != nil {
		return fmt.Errorf("registration failed")
	}
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a := openApp()
	defer a.Close()

	user := a.sess.Current().Username
	if user == "" {
		fmt.Println("Not signed in.")
		return nil
	}
	if a.cache != nil {
		ctx, cancel := commandContext()
		defer cancel()
		if err := a.cache.Forget(ctx, user); err != nil {
			logger.Warn("forget offline snapshot", zap.Error(err))
		}
	}
	if err := a.ctl.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	fmt.Printf("Signed out %s.\n", user)
	return nil
}

func runWhoami(cmd *cobra.Command, args []string) error {
	a := openApp(cliOptions(false)...)
	defer a.Close()
	if err := a.requireSession(); err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()
	if err := a.ctl.LoadRole(ctx); err != nil {
		return fmt.Errorf("could not resolve role")
	}
	s := a.sess.Current()
	fmt.Printf("%s (%s) on %s\n", s.Username, s.Role, cfg.Server.BaseURL)
	return nil
}
