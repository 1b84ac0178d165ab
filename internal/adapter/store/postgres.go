package store

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/proplens/go-crm-agent/internal/domain"
)

// PostgresStore handles all relational database operations: the leads
// record store, request audit logs and schema bootstrap.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Migrate creates the relational tables if they do not exist. Vector tables
// are owned by VectorIndex.EnsureSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			crm_id VARCHAR(64) NOT NULL DEFAULT '',
			name VARCHAR(200) NOT NULL,
			email VARCHAR(254) NOT NULL,
			country_code VARCHAR(10) NOT NULL DEFAULT '',
			phone VARCHAR(50) NOT NULL DEFAULT '',
			unit_type VARCHAR(100) NOT NULL DEFAULT '',
			budget_min NUMERIC(15,2),
			budget_max NUMERIC(15,2),
			status VARCHAR(50) NOT NULL DEFAULT 'New',
			last_conversation_date DATE,
			last_conversation_summary TEXT NOT NULL DEFAULT '',
			project_enquired VARCHAR(200) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_checkpoints (
			thread_id TEXT PRIMARY KEY,
			state JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id BIGSERIAL PRIMARY KEY,
			action TEXT NOT NULL,
			resource TEXT NOT NULL DEFAULT '',
			resource_id TEXT NOT NULL DEFAULT '',
			details JSONB NOT NULL DEFAULT '{}',
			ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// --- Leads ---

// leadHeaderMap maps spreadsheet headers to leads columns.
var leadHeaderMap = map[string]string{
	"Lead ID":                   "crm_id",
	"Lead name":                 "name",
	"Email":                     "email",
	"Country code":              "country_code",
	"Phone":                     "phone",
	"Project name":              "project_enquired",
	"Unit type":                 "unit_type",
	"Min. Budget":               "budget_min",
	"Max Budget":                "budget_max",
	"Lead status":               "status",
	"Last conversation date":    "last_conversation_date",
	"Last conversation summary": "last_conversation_summary",
}

// ImportLeadsCSV bulk-loads leads from a CSV export of the CRM spreadsheet.
// Rows without both a name and an email are skipped. Returns the number of
// rows inserted.
func (s *PostgresStore) ImportLeadsCSV(ctx context.Context, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read csv header: %w", err)
	}
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = leadHeaderMap[strings.TrimSpace(h)]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (crm_id, name, email, country_code, phone, unit_type,
		                    budget_min, budget_max, status, last_conversation_date,
		                    last_conversation_summary, project_enquired)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("read csv row: %w", err)
		}

		lead := domain.Lead{Status: domain.LeadStatusNew}
		for i, raw := range record {
			if i >= len(columns) {
				break
			}
			value := strings.TrimSpace(raw)
			switch columns[i] {
			case "crm_id":
				lead.CRMID = value
			case "name":
				lead.Name = value
			case "email":
				lead.Email = value
			case "country_code":
				lead.CountryCode = value
			case "phone":
				lead.Phone = value
			case "unit_type":
				lead.UnitType = value
			case "budget_min":
				lead.BudgetMin = parseNumber(value)
			case "budget_max":
				lead.BudgetMax = parseNumber(value)
			case "status":
				if value != "" {
					lead.Status = value
				}
			case "last_conversation_date":
				lead.LastConversationDate = parseDate(value)
			case "last_conversation_summary":
				lead.LastConversationSummary = value
			case "project_enquired":
				lead.ProjectEnquired = value
			}
		}

		if lead.Name == "" || lead.Email == "" {
			continue
		}

		var date any
		if lead.LastConversationDate != nil {
			date = *lead.LastConversationDate
		}
		if _, err := stmt.ExecContext(ctx,
			lead.CRMID, lead.Name, lead.Email, lead.CountryCode, lead.Phone,
			lead.UnitType, lead.BudgetMin, lead.BudgetMax, lead.Status,
			date, lead.LastConversationSummary, lead.ProjectEnquired,
		); err != nil {
			return inserted, fmt.Errorf("insert lead: %w", err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

// ShortlistLeads filters leads for campaign targeting. A lead matches the
// budget envelope when its own budget range overlaps the requested one.
func (s *PostgresStore) ShortlistLeads(ctx context.Context, f domain.ShortlistFilter) ([]domain.Lead, error) {
	query := `SELECT id, crm_id, name, email, country_code, phone, unit_type,
	                 budget_min, budget_max, status, last_conversation_date,
	                 last_conversation_summary, project_enquired, created_at
	          FROM leads`
	var clauses []string
	var args []any
	argIdx := 1

	add := func(clause string, value any) {
		clauses = append(clauses, fmt.Sprintf(clause, argIdx))
		args = append(args, value)
		argIdx++
	}

	if f.ProjectEnquired != "" {
		add("project_enquired ILIKE $%d", "%"+f.ProjectEnquired+"%")
	}
	if f.BudgetMin != nil {
		add("budget_max >= $%d", *f.BudgetMin)
	}
	if f.BudgetMax != nil {
		add("budget_min <= $%d", *f.BudgetMax)
	}
	if f.Status != "" {
		add("status ILIKE $%d", strings.TrimSpace(f.Status))
	}
	if f.DateFrom != nil {
		add("last_conversation_date >= $%d", *f.DateFrom)
	}
	if f.DateTo != nil {
		add("last_conversation_date <= $%d", *f.DateTo)
	}
	if len(f.UnitTypes) > 0 {
		var ors []string
		for _, u := range f.UnitTypes {
			u = strings.TrimSpace(u)
			if u == "" {
				continue
			}
			ors = append(ors, fmt.Sprintf("unit_type ILIKE $%d", argIdx))
			args = append(args, "%"+u+"%")
			argIdx++
		}
		if len(ors) > 0 {
			clauses = append(clauses, "("+strings.Join(ors, " OR ")+")")
		}
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("shortlist leads: %w", err)
	}
	defer rows.Close()

	var leads []domain.Lead
	for rows.Next() {
		var l domain.Lead
		if err := rows.Scan(
			&l.ID, &l.CRMID, &l.Name, &l.Email, &l.CountryCode, &l.Phone,
			&l.UnitType, &l.BudgetMin, &l.BudgetMax, &l.Status,
			&l.LastConversationDate, &l.LastConversationSummary,
			&l.ProjectEnquired, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

// --- Raw query execution ---

// RunQuery implements port.SQLRunner. It executes an already-validated
// read-only query and returns rows as column->value maps alongside the
// column order.
func (s *PostgresStore) RunQuery(ctx context.Context, query string) ([]string, []map[string]any, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			// lib/pq returns []byte for text-ish columns; surface strings.
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	return columns, out, rows.Err()
}

// --- Audit Logs ---

// WriteAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteAudit(action, resource, resourceID, details, ip, userAgent string) error {
	query := `INSERT INTO audit_logs (action, resource, resource_id, details, ip, user_agent)
	          VALUES ($1, $2, $3, $4::jsonb, $5, $6)`
	_, err := s.db.ExecContext(context.Background(),
		query, action, resource, resourceID, details, ip, userAgent,
	)
	return err
}

// parseNumber parses a budget figure, tolerating thousands separators.
// Returns nil for blanks and garbage, matching the spreadsheet loader.
func parseNumber(v string) *float64 {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", "")
	if v == "" {
		return nil
	}
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err != nil {
		return nil
	}
	return &f
}

// parseDate accepts the date layouts seen in CRM exports.
func parseDate(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "02/01/2006", "1/2/2006", time.RFC3339} {
		if t, err := time.Parse(layout, v); err == nil {
			return &t
		}
	}
	return nil
}
