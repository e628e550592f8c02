package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure Zoho credentials, sync defaults and the admin API.

Secrets can also be supplied as LEDGERSYNC_* environment variables or in a
.env file; those values are never written to the config file.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

// wizardInput is read by the wizard; tests replace it.
var wizardInput io.Reader = os.Stdin

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Source]")
	cmd.Printf("  Accounts URL: %s\n", settings.Source.AccountsURL)
	cmd.Printf("  API URL: %s\n", settings.Source.APIBaseURL)
	cmd.Printf("  Client ID: %s\n", orNotSet(settings.Source.ClientID))
	cmd.Printf("  Client Secret: %s\n", maskSecret(settings.Source.ClientSecret))
	cmd.Printf("  Refresh Token: %s\n", maskSecret(settings.Source.RefreshToken))
	cmd.Printf("  Organisation: %s\n", orNotSet(settings.Source.OrganizationID))
	cmd.Printf("  Requests/sec: %g\n", settings.Source.RequestsPerSecond)
	cmd.Println()

	cmd.Println("[Sync]")
	cmd.Printf("  Window: %d days\n", settings.Sync.WindowDays)
	cmd.Printf("  Modules: %s\n", strings.Join(settings.Sync.Modules, ", "))
	cmd.Printf("  Operator domain: %s\n", orNotSet(settings.Sync.OperatorDomain))
	cmd.Printf("  Fetch comments: %t\n", settings.Sync.FetchComments)
	cmd.Printf("  Schedule interval: %s\n", settings.Sync.ScheduleInterval)
	cmd.Println()

	cmd.Println("[Server]")
	cmd.Printf("  Address: %s\n", settings.Server.Addr)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'ledgersync settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("ledgersync Settings Wizard")
	cmd.Println("==========================")
	cmd.Println()

	reader := bufio.NewReader(wizardInput)

	cmd.Println("Step 1: Zoho Credentials")
	cmd.Println("------------------------")
	settings.Source.ClientID = prompt(cmd, reader, "Client ID", settings.Source.ClientID)
	cmd.Print("Client secret (leave blank to keep): ")
	if secret := readPassword(reader); secret != "" {
		settings.Source.ClientSecret = secret
	}
	cmd.Println()
	cmd.Print("Refresh token (leave blank to keep): ")
	if token := readPassword(reader); token != "" {
		settings.Source.RefreshToken = token
	}
	cmd.Println()
	settings.Source.OrganizationID = prompt(cmd, reader, "Organisation ID", settings.Source.OrganizationID)
	settings.Source.AccountsURL = prompt(cmd, reader, "Accounts URL", settings.Source.AccountsURL)
	settings.Source.APIBaseURL = prompt(cmd, reader, "API URL", settings.Source.APIBaseURL)
	cmd.Println()

	cmd.Println("Step 2: Sync Defaults")
	cmd.Println("---------------------")
	windowInput := prompt(cmd, reader, "Window days", strconv.Itoa(settings.Sync.WindowDays))
	settings.Sync.WindowDays = parsePositive(windowInput, settings.Sync.WindowDays)
	settings.Sync.OperatorDomain = prompt(cmd, reader, "Operator e-mail domain", settings.Sync.OperatorDomain)
	cmd.Println()

	if err := settingsService.Save(settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

// Helper functions.

func prompt(cmd *cobra.Command, reader *bufio.Reader, label, current string) string {
	if current != "" {
		cmd.Printf("%s [%s]: ", label, current)
	} else {
		cmd.Printf("%s: ", label)
	}
	if input := readLine(reader); input != "" {
		return input
	}
	return current
}

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parsePositive(input string, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 {
		return defaultVal
	}
	return val
}

func readPassword(reader *bufio.Reader) string {
	// Read without echo when attached to a terminal
	if f, ok := wizardInput.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskSecret(key string) string {
	if key == "" {
		return "(not set)"
	}
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// settingsDefaults is used when no settings service is wired.
func settingsDefaults() domain.Settings {
	if settingsService != nil {
		return settingsService.GetDefaults()
	}
	return domain.DefaultSettings()
}
