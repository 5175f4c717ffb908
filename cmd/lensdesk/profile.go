package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

const defaultProfileName = "default"

// ProfilesConfig holds the named server profiles and which one is active.
type ProfilesConfig struct {
	Active   string             `toml:"active"`
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile is one server plus the session saved by the last login against it.
type Profile struct {
	URL      string `toml:"url"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
	Token    string `toml:"token,omitempty"`
	Email    string `toml:"email,omitempty"`
}

func profilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".local", "state", "lensdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "profiles.toml"), nil
}

func loadProfiles() (ProfilesConfig, error) {
	path, err := profilePath()
	if err != nil {
		return ProfilesConfig{}, err
	}
	var cfg ProfilesConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		if os.IsNotExist(err) {
			return ProfilesConfig{Profiles: map[string]Profile{}}, nil
		}
		return ProfilesConfig{}, err
	}
	if cfg.Profiles == nil {
		cfg.Profiles = map[string]Profile{}
	}
	return cfg, nil
}

func saveProfiles(cfg ProfilesConfig) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// activeName is the profile that login and logout write to.
func (c ProfilesConfig) activeName() string {
	if c.Active != "" {
		return c.Active
	}
	return defaultProfileName
}

var (
	profileOnce   sync.Once
	cachedProfile Profile
)

// activeProfile returns the active profile, loaded once per process. A
// missing or unreadable file yields the zero Profile.
func activeProfile() Profile {
	profileOnce.Do(func() {
		cfg, err := loadProfiles()
		if err != nil {
			return
		}
		cachedProfile = cfg.Profiles[cfg.activeName()]
	})
	return cachedProfile
}

// rememberSession stores token for the active profile, creating it for url
// when needed. An empty token forgets the session.
func rememberSession(url, token, email string) error {
	cfg, err := loadProfiles()
	if err != nil {
		return err
	}
	name := cfg.activeName()
	p := cfg.Profiles[name]
	if p.URL == "" {
		p.URL = url
	}
	p.Token = token
	p.Email = email
	cfg.Profiles[name] = p
	if cfg.Active == "" {
		cfg.Active = name
	}
	return saveProfiles(cfg)
}

var profileCmd = &cobra.Command{
	Use:               "profile",
	Short:             "Manage saved server profiles",
	GroupID:           "system",
	PersistentPreRunE: noClient,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> <http-url>",
	Short: "Add or update a named profile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, url := args[0], args[1]
		grpcAddr, _ := cmd.Flags().GetString("grpc")

		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		p := cfg.Profiles[name]
		if p.URL != url {
			// A session belongs to the server that issued it.
			p.Token, p.Email = "", ""
		}
		p.URL = url
		if grpcAddr != "" {
			p.GRPCAddr = grpcAddr
		}
		cfg.Profiles[name] = p
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q saved (%s)\n", name, url)
		return nil
	},
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Switch the active profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		cfg.Active = args[0]
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Printf("active profile: %s\n", args[0])
		return nil
	},
}

var profileRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a named profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		if _, ok := cfg.Profiles[args[0]]; !ok {
			return fmt.Errorf("profile %q not found", args[0])
		}
		delete(cfg.Profiles, args[0])
		if cfg.Active == args[0] {
			cfg.Active = ""
		}
		if err := saveProfiles(cfg); err != nil {
			return err
		}
		fmt.Printf("profile %q removed\n", args[0])
		return nil
	},
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadProfiles()
		if err != nil {
			return err
		}
		names := make([]string, 0, len(cfg.Profiles))
		for name := range cfg.Profiles {
			names = append(names, name)
		}
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\tNAME\tURL\tGRPC\tSIGNED IN AS")
		for _, name := range names {
			p := cfg.Profiles[name]
			marker := ""
			if name == cfg.activeName() {
				marker = "*"
			}
			email := p.Email
			if p.Token == "" {
				email = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", marker, name, p.URL, p.GRPCAddr, email)
		}
		return w.Flush()
	},
}

func init() {
	profileAddCmd.Flags().String("grpc", "", "gRPC address of the access service")
	profileCmd.AddCommand(profileAddCmd, profileUseCmd, profileRemoveCmd, profileListCmd)
}
