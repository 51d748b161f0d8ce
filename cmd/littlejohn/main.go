package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/littlejohn/internal/app"
	"github.com/dropDatabas3/littlejohn/internal/config"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
	"github.com/dropDatabas3/littlejohn/internal/security/totp"
	"github.com/dropDatabas3/littlejohn/internal/store/pg"
	migrations "github.com/dropDatabas3/littlejohn/migrations/postgres"
)

func main() {
	_ = godotenv.Load(".env")

	var configPath string

	root := &cobra.Command{
		Use:   "littlejohn",
		Short: "Token & session lifecycle engine",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.example.yaml", "Path al YAML de configuración")

	root.AddCommand(migrateCmd(&configPath))
	root.AddCommand(cleanupCmd(&configPath))
	root.AddCommand(checkCmd(&configPath))
	root.AddCommand(keygenCmd())
	root.AddCommand(totpURICmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.Log.Level,
		ServiceName: "littlejohn",
	})
	return cfg, nil
}

// migrateCmd aplica las migraciones *_up.sql (o *_down.sql en reversa).
func migrateCmd(configPath *string) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "migrate [up|down]",
		Short: "Aplica las migraciones de esquema",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action := "up"
			if len(args) == 1 {
				action = strings.ToLower(args[0])
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.L()

			ctx := cmd.Context()
			pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("pgxpool: %w", err)
			}
			defer pool.Close()

			var suffix string
			switch action {
			case "up":
				suffix = "_up.sql"
			case "down":
				suffix = "_down.sql"
			default:
				return fmt.Errorf("acción desconocida %q (up | down)", action)
			}

			files, err := listSQL(dir, suffix)
			if err != nil {
				return err
			}
			sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })
			if action == "down" {
				for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
					files[i], files[j] = files[j], files[i]
				}
			}
			if len(files) == 0 {
				log.Info("no migrations found")
				return nil
			}

			for _, f := range files {
				start := time.Now()
				if _, err := pool.Exec(ctx, string(f.body)); err != nil {
					return fmt.Errorf("exec %s: %w", f.name, err)
				}
				log.Info("migration applied",
					logger.String("file", f.name),
					logger.Duration(time.Since(start)),
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "Directorio con *_up.sql y *_down.sql (default: migraciones embebidas)")
	return cmd
}

// cleanupCmd elimina sesiones y refresh tokens expirados. Pensado para
// correr periódicamente (cron).
func cleanupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Elimina sesiones y refresh tokens expirados",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.L()

			ctx := cmd.Context()
			store, err := pg.New(ctx, cfg.Storage.DSN, pg.Options{
				MaxConns:        int32(cfg.Storage.Postgres.MaxConns),
				MinConns:        int32(cfg.Storage.Postgres.MinConns),
				ConnMaxLifetime: cfg.PGConnMaxLifetime(),
				OpTimeout:       cfg.PGOpTimeout(),
			})
			if err != nil {
				return err
			}
			defer store.Close()

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				n, err := store.Sessions().DeleteExpired(gctx)
				if err != nil {
					return fmt.Errorf("sessions: %w", err)
				}
				log.Info("expired sessions deleted", logger.Count(n))
				return nil
			})
			g.Go(func() error {
				n, err := store.Tokens().DeleteExpired(gctx)
				if err != nil {
					return fmt.Errorf("refresh tokens: %w", err)
				}
				log.Info("expired refresh tokens deleted", logger.Count(n))
				return nil
			})

			return g.Wait()
		},
	}
}

// checkCmd arma el motor completo y verifica conectividad contra el store
// durable y el cache.
func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verifica configuración y conectividad (store + cache)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.Pool().Ping(ctx); err != nil {
				return fmt.Errorf("store ping: %w", err)
			}
			if err := a.Cache.Ping(ctx); err != nil {
				return fmt.Errorf("cache ping: %w", err)
			}
			logger.L().Info("check ok",
				logger.String("cache", cfg.Cache.Kind),
				logger.String("env", cfg.App.Env),
			)
			return nil
		},
	}
}

// keygenCmd genera material de configuración: seed ed25519 para firmar y
// passphrase aleatoria para el cifrado de secretos MFA.
func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Genera seed de firma y passphrase de cifrado",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed := make([]byte, 32)
			if _, err := rand.Read(seed); err != nil {
				return err
			}
			pass := make([]byte, 32)
			if _, err := rand.Read(pass); err != nil {
				return err
			}
			fmt.Printf("JWT_ED25519_SEED=%s\n", base64.StdEncoding.EncodeToString(seed))
			fmt.Printf("MFA_SECRET_PASSPHRASE=%s\n", base64.RawURLEncoding.EncodeToString(pass))
			return nil
		},
	}
}

// totpURICmd genera un descriptor de enrolamiento TOTP de prueba. Sirve
// para verificar manualmente una app autenticadora contra este servicio.
func totpURICmd() *cobra.Command {
	var issuer, account, qrPath string

	cmd := &cobra.Command{
		Use:   "totp-uri",
		Short: "Genera un secreto TOTP de prueba y su URL otpauth://",
		RunE: func(cmd *cobra.Command, args []string) error {
			enr, err := totp.Generate(issuer, account)
			if err != nil {
				return err
			}
			fmt.Printf("secret: %s\n", enr.Secret)
			fmt.Printf("url:    %s\n", enr.URL)
			if qrPath != "" {
				if err := os.WriteFile(qrPath, enr.QRCodePNG, 0o600); err != nil {
					return err
				}
				fmt.Printf("qr:     %s\n", qrPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&issuer, "issuer", "littlejohn", "Issuer del descriptor otpauth")
	cmd.Flags().StringVar(&account, "account", "test@example.com", "Cuenta del descriptor otpauth")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Si se indica, escribe el QR PNG en esta ruta")
	return cmd
}

type sqlFile struct {
	name string
	body []byte
}

// listSQL junta las migraciones con el sufijo dado, desde disco si se
// indicó un directorio o desde las embebidas en el binario.
func listSQL(dir, suffix string) ([]sqlFile, error) {
	if dir == "" {
		entries, err := migrations.FS.ReadDir(".")
		if err != nil {
			return nil, err
		}
		var out []sqlFile
		for _, e := range entries {
			if !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
				continue
			}
			b, err := migrations.FS.ReadFile(e.Name())
			if err != nil {
				return nil, err
			}
			out = append(out, sqlFile{name: e.Name(), body: b})
		}
		return out, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []sqlFile
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, sqlFile{name: e.Name(), body: b})
	}
	return out, nil
}
