package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"

	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/clock"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/domain"
	"github.com/Luny-Nytro/discipline-daemon-sub000/internal/policy"
)

// Ensure sqlcipher driver is registered.
var _ = sqlcipher.ErrBusy

const (
	storeDBName   = "discipline.db"
	schemaVersion = "1"
)

// Store implements domain.Persistence and domain.SecretStore using a
// SQLCipher encrypted SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

// OpenStore opens (or creates) the encrypted database in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func OpenStore(dataDir string, key []byte) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, storeDBName)
	keyHex := hex.EncodeToString(key)

	// Open with SQLCipher key as DSN parameter
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, keyHex)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open encrypted database: %w", err)
	}
	// One writer at a time; SQLite would answer SQLITE_BUSY otherwise.
	db.SetMaxOpenConns(1)

	// Verify the key by running a query
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to encrypted database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// createTables creates the schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		user_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		status TEXT NOT NULL,
		enabled INTEGER NOT NULL,
		check_interval_ms INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		account_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		enabler_duration_ms INTEGER NOT NULL,
		enabler_remaining_ms INTEGER NOT NULL,
		enabler_previous_sync INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rules (
		id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL,
		account_id INTEGER NOT NULL,
		activator_kind INTEGER NOT NULL,
		activator_first INTEGER NOT NULL,
		activator_second INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS secrets (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err := s.db.Exec(`INSERT OR IGNORE INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// --- accounts ---

// AddAccount inserts a new account row.
func (s *Store) AddAccount(ctx context.Context, a *domain.ManagedAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (user_id, username, password, status, enabled, check_interval_ms)
		VALUES (?, ?, ?, ?, ?, ?)`,
		int64(a.UserID), a.Username, a.Password, a.Status.String(), a.Enabled, int64(a.CheckInterval.Milliseconds()),
	)
	if err != nil {
		return fmt.Errorf("insert account %d: %w", a.UserID, err)
	}
	return nil
}

// DeleteAccount removes the account together with its policies and rules.
func (s *Store) DeleteAccount(ctx context.Context, id domain.AccountID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE account_id = ?`, int64(id)); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM policies WHERE account_id = ?`, int64(id)); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = ?`, int64(id))
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

// UpdateAccountStatus stores the last application status.
func (s *Store) UpdateAccountStatus(ctx context.Context, id domain.AccountID, status domain.ApplicationStatus) error {
	return s.exec(ctx, `UPDATE accounts SET status = ? WHERE user_id = ?`, status.String(), int64(id))
}

// UpdateAccountEnabled stores whether the regulation is applied.
func (s *Store) UpdateAccountEnabled(ctx context.Context, id domain.AccountID, enabled bool) error {
	return s.exec(ctx, `UPDATE accounts SET enabled = ? WHERE user_id = ?`, enabled, int64(id))
}

// UpdateAccountCheckInterval stores the account's check interval.
func (s *Store) UpdateAccountCheckInterval(ctx context.Context, id domain.AccountID, interval clock.Duration) error {
	return s.exec(ctx, `UPDATE accounts SET check_interval_ms = ? WHERE user_id = ?`,
		int64(interval.Milliseconds()), int64(id))
}

// FindAllAccounts loads every account with its regulation, ordered by user id.
func (s *Store) FindAllAccounts(ctx context.Context) ([]*domain.ManagedAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, username, password, status, enabled, check_interval_ms
		FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	var accounts []*domain.ManagedAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, a := range accounts {
		if a.Regulation, err = s.loadRegulation(ctx, a.UserID); err != nil {
			return nil, err
		}
	}
	return accounts, nil
}

// FindAccount loads one account with its regulation.
func (s *Store) FindAccount(ctx context.Context, id domain.AccountID) (*domain.ManagedAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, username, password, status, enabled, check_interval_ms
		FROM accounts WHERE user_id = ?`, int64(id))
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Regulation, err = s.loadRegulation(ctx, id); err != nil {
		return nil, err
	}
	return a, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*domain.ManagedAccount, error) {
	var (
		uid        int64
		a          domain.ManagedAccount
		status     string
		intervalMs int64
	)
	if err := row.Scan(&uid, &a.Username, &a.Password, &status, &a.Enabled, &intervalMs); err != nil {
		return nil, err
	}
	st, err := domain.ParseApplicationStatus(status)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", uid, err)
	}
	a.UserID = domain.AccountID(uid)
	a.Status = st
	a.CheckInterval = clock.Duration(intervalMs)
	return &a, nil
}

// loadRegulation rebuilds an account's policies in creation order.
func (s *Store) loadRegulation(ctx context.Context, id domain.AccountID) (*policy.Regulation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, enabler_duration_ms, enabler_remaining_ms, enabler_previous_sync
		FROM policies WHERE account_id = ? ORDER BY rowid`, int64(id))
	if err != nil {
		return nil, err
	}
	var policies []*policy.Policy
	for rows.Next() {
		var (
			rawID               string
			name                string
			duration, remaining int64
			previousSync        int64
		)
		if err := rows.Scan(&rawID, &name, &duration, &remaining, &previousSync); err != nil {
			rows.Close()
			return nil, err
		}
		pid, err := uuid.Parse(rawID)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("policy id %q: %w", rawID, err)
		}
		policies = append(policies, &policy.Policy{
			ID:   pid,
			Name: policy.Name(name),
			Enabler: clock.RestoreCountdownTimer(
				clock.Duration(duration), clock.Duration(remaining), clock.FromUnixMilli(previousSync)),
		})
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	for _, p := range policies {
		if p.Rules, err = s.loadRules(ctx, id, p.ID); err != nil {
			return nil, err
		}
	}
	return policy.NewRegulation(policies...), nil
}

func (s *Store) loadRules(ctx context.Context, id domain.AccountID, policyID uuid.UUID) ([]policy.Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, activator_kind, activator_first, activator_second
		FROM rules WHERE account_id = ? AND policy_id = ? ORDER BY rowid`,
		int64(id), policyID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []policy.Rule
	for rows.Next() {
		var (
			rawID         string
			kind          int64
			first, second int64
		)
		if err := rows.Scan(&rawID, &kind, &first, &second); err != nil {
			return nil, err
		}
		rid, err := uuid.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("rule id %q: %w", rawID, err)
		}
		a, err := policy.DecodeActivator(policy.ActivatorKind(kind), uint32(first), uint32(second))
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rid, err)
		}
		rules = append(rules, policy.Rule{ID: rid, Activator: a})
	}
	return rules, rows.Err()
}

// --- policies and rules ---

// AddPolicy inserts a policy and any rules it already holds.
func (s *Store) AddPolicy(ctx context.Context, id domain.AccountID, p *policy.Policy) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO policies (id, account_id, name, enabler_duration_ms, enabler_remaining_ms, enabler_previous_sync)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID.String(), int64(id), string(p.Name),
			int64(p.Enabler.Duration().Milliseconds()),
			int64(p.Enabler.StoredRemaining().Milliseconds()),
			p.Enabler.PreviousSync().UnixMilli(),
		)
		if err != nil {
			return err
		}
		for _, r := range p.Rules {
			if err := insertRule(ctx, tx, id, p.ID, r); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePolicy removes a policy with its rules.
func (s *Store) DeletePolicy(ctx context.Context, id domain.AccountID, policyID uuid.UUID) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM rules WHERE account_id = ? AND policy_id = ?`,
			int64(id), policyID.String()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM policies WHERE account_id = ? AND id = ?`,
			int64(id), policyID.String())
		if err != nil {
			return err
		}
		return expectRow(res)
	})
}

// UpdatePolicyName stores a new policy name.
func (s *Store) UpdatePolicyName(ctx context.Context, id domain.AccountID, policyID uuid.UUID, name policy.Name) error {
	return s.exec(ctx, `UPDATE policies SET name = ? WHERE account_id = ? AND id = ?`,
		string(name), int64(id), policyID.String())
}

// UpdatePolicyEnabler stores the policy's countdown state.
func (s *Store) UpdatePolicyEnabler(ctx context.Context, id domain.AccountID, policyID uuid.UUID, enabler clock.CountdownTimer) error {
	return s.exec(ctx, `
		UPDATE policies
		SET enabler_duration_ms = ?, enabler_remaining_ms = ?, enabler_previous_sync = ?
		WHERE account_id = ? AND id = ?`,
		int64(enabler.Duration().Milliseconds()),
		int64(enabler.StoredRemaining().Milliseconds()),
		enabler.PreviousSync().UnixMilli(),
		int64(id), policyID.String())
}

// AddRule inserts a rule under a policy.
func (s *Store) AddRule(ctx context.Context, id domain.AccountID, policyID uuid.UUID, rule policy.Rule) error {
	return insertRule(ctx, s.db, id, policyID, rule)
}

// DeleteRule removes one rule.
func (s *Store) DeleteRule(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID) error {
	return s.exec(ctx, `DELETE FROM rules WHERE account_id = ? AND policy_id = ? AND id = ?`,
		int64(id), policyID.String(), ruleID.String())
}

// UpdateRuleActivator replaces a rule's activator.
func (s *Store) UpdateRuleActivator(ctx context.Context, id domain.AccountID, policyID, ruleID uuid.UUID, a policy.Activator) error {
	kind, first, second := policy.EncodeActivator(a)
	return s.exec(ctx, `
		UPDATE rules SET activator_kind = ?, activator_first = ?, activator_second = ?
		WHERE account_id = ? AND policy_id = ? AND id = ?`,
		int64(kind), int64(first), int64(second),
		int64(id), policyID.String(), ruleID.String())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRule(ctx context.Context, db execer, id domain.AccountID, policyID uuid.UUID, r policy.Rule) error {
	kind, first, second := policy.EncodeActivator(r.Activator)
	_, err := db.ExecContext(ctx, `
		INSERT INTO rules (id, policy_id, account_id, activator_kind, activator_first, activator_second)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID.String(), policyID.String(), int64(id), int64(kind), int64(first), int64(second))
	if err != nil {
		return fmt.Errorf("insert rule %s: %w", r.ID, err)
	}
	return nil
}

// exec runs a single-row write and maps "no row touched" to domain.ErrNotFound.
func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- domain.SecretStore implementation ---

// GetSecret retrieves a secret by key.
func (s *Store) GetSecret(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM secrets WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("secret %q: %w", key, domain.ErrNotFound)
	}
	return value, err
}

// SetSecret stores a secret.
func (s *Store) SetSecret(key, value string) error {
	now := time.Now().Unix()
	_, err := s.db.Exec(`INSERT OR REPLACE INTO secrets (key, value, created_at) VALUES (?, ?, ?)`,
		key, value, now)
	return err
}

// --- meta ---

// Meta reads a metadata value such as "schema_version" or "mode".
func (s *Store) Meta(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", domain.ErrNotFound
	}
	return value, err
}

// SetMeta writes a metadata value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value)
	return err
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure Store implements both interfaces.
var _ domain.Persistence = (*Store)(nil)
var _ domain.SecretStore = (*Store)(nil)
