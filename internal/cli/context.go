package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"

	"github.com/gitprivacy/git-privacy/internal/coordinate"
	"github.com/gitprivacy/git-privacy/internal/gitio"
	"github.com/gitprivacy/git-privacy/internal/lock"
	"github.com/gitprivacy/git-privacy/internal/recovery"
	"github.com/gitprivacy/git-privacy/internal/vault"
	"github.com/gitprivacy/git-privacy/pkg/config"
	"github.com/gitprivacy/git-privacy/pkg/logging"
	"github.com/gitprivacy/git-privacy/pkg/progress"
)

// requireRepo opens the repository at --gitdir (or CWD) or exits.
func requireRepo() *gitio.Repo {
	dir := gitDir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			fmtErr("cannot get current directory: %v", err)
			os.Exit(1)
		}
		dir = cwd
	}
	repo, err := gitio.Open(dir)
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	return repo
}

// requireConfig resolves the typed configuration. With needSecret set, a
// missing password is prompted for on the terminal (never persisted) and a
// missing salt is generated and written to the repository config once.
func requireConfig(repo *gitio.Repo, needSecret bool) *config.Config {
	cfg, err := repo.ReadConfig()
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(privacyDir(cfg))
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	setupLogging(settings.Logging.Level, settings.Logging.Format)

	if !needSecret {
		return cfg
	}

	if cfg.Password == "" {
		pw, err := promptPassword()
		if err != nil {
			fmtErr("read password: %v", err)
			os.Exit(1)
		}
		cfg.Password = pw
	}
	if cfg.Salt == "" {
		logging.Warn("no salt configured, generating one")
		salt, err := vault.GenerateSalt()
		if err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		if err := repo.WriteSalt(salt); err != nil {
			fmtErr("%v", err)
			os.Exit(1)
		}
		cfg.Salt = salt
	}
	if err := cfg.Validate(); err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	return cfg
}

func promptPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	defer fmt.Fprintln(os.Stderr)
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func privacyDir(cfg *config.Config) string {
	return filepath.Dir(cfg.StorePath)
}

// requireStore derives the key and opens the recovery store, or exits.
func requireStore(cfg *config.Config) (*recovery.Store, vault.Key) {
	key, err := vault.DeriveKey(cfg.Password, cfg.Salt)
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	store, err := recovery.Open(cfg.StorePath, key)
	if err != nil {
		fmtErr("%v", err)
		os.Exit(1)
	}
	return store, key
}

// terminalConfirmer asks yes/no questions on the terminal. The --yes flag
// on redate swaps it for an autoConfirmer.
type terminalConfirmer struct{}

func (terminalConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

type autoConfirmer struct{}

func (autoConfirmer) Confirm(prompt string) (bool, error) {
	fmt.Fprintln(os.Stderr, prompt)
	fmt.Fprintln(os.Stderr, "(confirmed via --yes)")
	return true, nil
}

func newCoordinator(repo *gitio.Repo, cfg *config.Config, key vault.Key, store coordinate.Store, confirmer coordinate.Confirmer, progressCb progress.Callback) *coordinate.Coordinator {
	return coordinate.New(coordinate.Deps{
		Config:     cfg,
		Key:        key,
		History:    repo,
		Rewriter:   gitio.NewRewriter(repo.Root(), nil),
		Store:      store,
		Confirmer:  confirmer,
		Locks:      lock.NewManager(privacyDir(cfg)),
		PrivacyDir: privacyDir(cfg),
		Progress:   progressCb,
	})
}
