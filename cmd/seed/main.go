// Command seed loads sample accounts, kits, penalty policies and borrowing
// requests into a development database.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository/postgres"
)

type Account struct {
	Email    string `yaml:"email"`
	FullName string `yaml:"full_name"`
	Phone    string `yaml:"phone"`
	Role     string `yaml:"role"`
	Balance  int64  `yaml:"balance"`
}

type Group struct {
	Name    string   `yaml:"name"`
	Leader  string   `yaml:"leader"`
	Members []string `yaml:"members"`
}

type Component struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Quantity int    `yaml:"quantity"`
	Price    int64  `yaml:"price"`
}

type Kit struct {
	Name        string      `yaml:"name"`
	Type        string      `yaml:"type"`
	Description string      `yaml:"description"`
	Quantity    int         `yaml:"quantity"`
	Amount      int64       `yaml:"amount"`
	Components  []Component `yaml:"components"`
}

type Policy struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Amount int64  `yaml:"amount"`
}

type Request struct {
	Kit       string `yaml:"kit"`
	Requester string `yaml:"requester"`
	Status    string `yaml:"status"`
	Deposit   int64  `yaml:"deposit"`
	// DueInDays places the expected return date relative to now; negative means already late.
	DueInDays int `yaml:"due_in_days"`
}

type SetupData struct {
	Accounts []Account `yaml:"accounts"`
	Groups   []Group   `yaml:"groups"`
	Kits     []Kit     `yaml:"kits"`
	Policies []Policy  `yaml:"policies"`
	Requests []Request `yaml:"requests"`
}

func main() {
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	dataPath := flag.String("data", "cmd/seed/sample.yaml", "Path to the seed data file")
	schemaPath := flag.String("schema", "", "Apply this schema file before seeding (e.g., db/schema.sql)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)

	data, err := readSetupFile(*dataPath)
	if err != nil {
		log.Fatalf("Failed to read seed data: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if *schemaPath != "" {
		schema, err := os.ReadFile(*schemaPath)
		if err != nil {
			log.Fatalf("Failed to read schema: %v", err)
		}
		if _, err := db.ExecContext(ctx, string(schema)); err != nil {
			log.Fatalf("Failed to apply schema: %v", err)
		}
		logger.Info("Schema applied", "file", *schemaPath)
	}

	if err := populate(ctx, db, data, time.Now().UTC()); err != nil {
		log.Fatalf("Failed to populate data: %v", err)
	}
	logger.Info("Seed data populated",
		"accounts", len(data.Accounts), "kits", len(data.Kits), "policies", len(data.Policies), "requests", len(data.Requests))
}

func readSetupFile(filename string) (*SetupData, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var data SetupData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// populate inserts everything in one transaction. Names and emails in the
// file are resolved to the generated ids.
func populate(ctx context.Context, db *sql.DB, data *SetupData, now time.Time) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	accounts := make(map[string]int32)
	for _, a := range data.Accounts {
		var id int32
		err := tx.QueryRowContext(ctx,
			`INSERT INTO accounts (email, full_name, phone, role, balance) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			a.Email, a.FullName, a.Phone, a.Role, a.Balance).Scan(&id)
		if err != nil {
			return fmt.Errorf("account %s: %w", a.Email, err)
		}
		accounts[a.Email] = id
	}

	for _, g := range data.Groups {
		var groupID int32
		if err := tx.QueryRowContext(ctx, `INSERT INTO student_groups (name) VALUES ($1) RETURNING id`, g.Name).Scan(&groupID); err != nil {
			return fmt.Errorf("group %s: %w", g.Name, err)
		}
		members := append([]string{g.Leader}, g.Members...)
		for i, email := range members {
			accountID, ok := accounts[email]
			if !ok {
				return fmt.Errorf("group %s: unknown member %s", g.Name, email)
			}
			role := "MEMBER"
			if i == 0 {
				role = "LEADER"
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, account_id, role) VALUES ($1, $2, $3)`,
				groupID, accountID, role); err != nil {
				return fmt.Errorf("group %s member %s: %w", g.Name, email, err)
			}
		}
	}

	kits := make(map[string]int32)
	components := make(map[string][]int32)
	for _, k := range data.Kits {
		var kitID int32
		err := tx.QueryRowContext(ctx,
			`INSERT INTO kits (kit_name, type, description, quantity, amount) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			k.Name, k.Type, k.Description, k.Quantity, k.Amount).Scan(&kitID)
		if err != nil {
			return fmt.Errorf("kit %s: %w", k.Name, err)
		}
		kits[k.Name] = kitID
		for _, c := range k.Components {
			var componentID int32
			err := tx.QueryRowContext(ctx,
				`INSERT INTO kit_components (kit_id, component_name, component_type, quantity, price_per_com) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
				kitID, c.Name, c.Type, c.Quantity, c.Price).Scan(&componentID)
			if err != nil {
				return fmt.Errorf("kit %s component %s: %w", k.Name, c.Name, err)
			}
			components[k.Name] = append(components[k.Name], componentID)
		}
	}

	for _, p := range data.Policies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO penalty_policies (policy_name, type, amount) VALUES ($1, $2, $3)`,
			p.Name, p.Type, p.Amount); err != nil {
			return fmt.Errorf("policy %s: %w", p.Name, err)
		}
	}

	for i, r := range data.Requests {
		kitID, ok := kits[r.Kit]
		if !ok {
			return fmt.Errorf("request %d: unknown kit %s", i, r.Kit)
		}
		accountID, ok := accounts[r.Requester]
		if !ok {
			return fmt.Errorf("request %d: unknown requester %s", i, r.Requester)
		}
		var approved *time.Time
		if r.Status != "PENDING" && r.Status != "REJECTED" {
			approved = &now
		}
		var requestID int32
		err := tx.QueryRowContext(ctx,
			`INSERT INTO borrowing_requests (kit_id, account_id, request_type, deposit_amount, status, approved_date, expect_return_date)
			 VALUES ($1, $2, 'BORROW_KIT', $3, $4, $5, $6) RETURNING id`,
			kitID, accountID, r.Deposit, r.Status, approved, now.AddDate(0, 0, r.DueInDays)).Scan(&requestID)
		if err != nil {
			return fmt.Errorf("request %d: %w", i, err)
		}
		for _, componentID := range components[r.Kit] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO borrowing_request_components (borrowing_request_id, kit_component_id, quantity) VALUES ($1, $2, 1)`,
				requestID, componentID); err != nil {
				return fmt.Errorf("request %d component %d: %w", i, componentID, err)
			}
		}
	}

	return tx.Commit()
}
