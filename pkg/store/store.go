package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"igmanager/pkg/models"
)

// DB is the sqlite-backed persistence surface: account upserts, snapshot
// storage, the allow-list and the append-only action log. WAL mode keeps
// status reads from blocking a running batch.
type DB struct {
	db *sql.DB
}

// Setup opens (creating if needed) the database at dbPath.
func Setup(dbPath string) (*DB, error) {
	opts := []string{
		"_foreign_keys=1",
		"_journal_mode=WAL",
		"_synchronous=NORMAL",
	}

	db, err := sql.Open("sqlite3", dbPath+"?"+strings.Join(opts, "&"))
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		create table if not exists accounts (
			id integer primary key autoincrement,
			handle text not null unique,
			external_id text,
			full_name text,
			is_verified integer not null default 0,
			follower_count integer not null default 0,
			follows_me integer not null default 0,
			i_follow integer not null default 0,
			created_at text not null,
			updated_at text not null
		);

		create table if not exists snapshots (
			id integer primary key autoincrement,
			kind text not null,
			target text not null,
			complete integer not null,
			rounds integer not null default 0,
			collected_at text not null
		);

		create table if not exists snapshot_entries (
			snapshot_id integer not null,
			handle text not null,
			primary key (snapshot_id, handle),
			foreign key (snapshot_id) references snapshots(id) on delete cascade
		);

		create table if not exists allowlist (
			handle text primary key,
			reason text,
			added_at text not null
		);

		create table if not exists actions (
			id integer primary key autoincrement,
			kind text not null,
			target text,
			outcome text not null,
			detail text,
			created_at text not null
		);
		create index if not exists idx_actions_kind_outcome_created
			on actions (kind, outcome, created_at);

		create table if not exists sessions (
			session_id text primary key,
			username text not null,
			cookies text not null,
			active integer not null default 1,
			created_at text not null,
			last_used text not null
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// UpsertObserved records an account observed by a collection pass. Identity
// fields are refreshed; the relationship flags only ever move from false to
// true here, since a single pass proves presence, never absence.
func (d *DB) UpsertObserved(a models.Account) error {
	query := `
		insert into accounts (handle, external_id, full_name, is_verified, follower_count, follows_me, i_follow, created_at, updated_at)
		values (?, ?, ?, ?, ?, ?, ?, ?, ?)
		on conflict(handle) do update set
			external_id = case when excluded.external_id != '' then excluded.external_id else accounts.external_id end,
			full_name = excluded.full_name,
			is_verified = excluded.is_verified,
			follower_count = case when excluded.follower_count > 0 then excluded.follower_count else accounts.follower_count end,
			follows_me = max(accounts.follows_me, excluded.follows_me),
			i_follow = max(accounts.i_follow, excluded.i_follow),
			updated_at = excluded.updated_at`
	ts := now()
	_, err := d.db.Exec(query, a.Handle, a.ExternalID, a.FullName, boolInt(a.Verified), a.FollowerCount, boolInt(a.FollowsMe), boolInt(a.IFollow), ts, ts)
	return err
}

// SetIFollow flips the persistent follow flag after an unfollow succeeds (or
// a follow is re-observed).
func (d *DB) SetIFollow(handle string, value bool) error {
	_, err := d.db.Exec(`update accounts set i_follow = ?, updated_at = ? where handle = ?`, boolInt(value), now(), handle)
	return err
}

// GetAccount fetches one account by handle.
func (d *DB) GetAccount(handle string) (*models.Account, error) {
	row := d.db.QueryRow(`
		select handle, coalesce(external_id, ''), coalesce(full_name, ''), is_verified, follower_count, follows_me, i_follow, updated_at
		from accounts where handle = ?`, handle)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*models.Account, error) {
	var a models.Account
	var verified, followsMe, iFollow int
	var updated string
	err := row.Scan(&a.Handle, &a.ExternalID, &a.FullName, &verified, &a.FollowerCount, &followsMe, &iFollow, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.Verified = verified != 0
	a.FollowsMe = followsMe != 0
	a.IFollow = iFollow != 0
	a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return &a, nil
}

// SaveSnapshot stores a completed collection run. Each new same-kind run
// supersedes the previous one for reconciliation purposes; old rows stay for
// history but LatestSnapshot only ever returns the newest.
func (d *DB) SaveSnapshot(snap *models.CollectionSnapshot) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`insert into snapshots (kind, target, complete, rounds, collected_at) values (?, ?, ?, ?, ?)`,
		string(snap.Kind), snap.Target, boolInt(snap.Complete), snap.Rounds, snap.CollectedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	snap.ID = id

	stmt, err := tx.Prepare(`insert or ignore into snapshot_entries (snapshot_id, handle) values (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, a := range snap.Accounts {
		if _, err := stmt.Exec(id, a.Handle); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// LatestSnapshot returns the most recent snapshot of the given kind for the
// target, with its accounts hydrated from the accounts table, or nil when no
// run has completed yet.
func (d *DB) LatestSnapshot(kind models.ListKind, target string) (*models.CollectionSnapshot, error) {
	row := d.db.QueryRow(`
		select id, kind, target, complete, rounds, collected_at
		from snapshots where kind = ? and target = ?
		order by id desc limit 1`, string(kind), target)

	var snap models.CollectionSnapshot
	var kindStr, collected string
	var complete int
	err := row.Scan(&snap.ID, &kindStr, &snap.Target, &complete, &snap.Rounds, &collected)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	snap.Kind = models.ListKind(kindStr)
	snap.Complete = complete != 0
	snap.CollectedAt, _ = time.Parse(time.RFC3339, collected)

	rows, err := d.db.Query(`
		select a.handle, coalesce(a.external_id, ''), coalesce(a.full_name, ''), a.is_verified, a.follower_count, a.follows_me, a.i_follow
		from snapshot_entries e join accounts a on a.handle = e.handle
		where e.snapshot_id = ?`, snap.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Account
		var verified, followsMe, iFollow int
		if err := rows.Scan(&a.Handle, &a.ExternalID, &a.FullName, &verified, &a.FollowerCount, &followsMe, &iFollow); err != nil {
			return nil, err
		}
		a.Verified = verified != 0
		a.FollowsMe = followsMe != 0
		a.IFollow = iFollow != 0
		// Relationship flags come from the accounts row, not the snapshot
		// pass: a successful unfollow flips i_follow to false and that flip
		// must survive hydration or the account stays a candidate forever.
		snap.Accounts = append(snap.Accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &snap, nil
}

// AddAllowed inserts a handle into the allow-list. Reports whether the row
// was newly inserted; re-adding is idempotent, not an error.
func (d *DB) AddAllowed(handle, reason string) (bool, error) {
	res, err := d.db.Exec(`insert or ignore into allowlist (handle, reason, added_at) values (?, ?, ?)`, handle, reason, now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RemoveAllowed deletes a handle from the allow-list, reporting whether it
// was actually present.
func (d *DB) RemoveAllowed(handle string) (bool, error) {
	res, err := d.db.Exec(`delete from allowlist where handle = ?`, handle)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IsAllowed reports allow-list membership.
func (d *DB) IsAllowed(handle string) (bool, error) {
	var one int
	err := d.db.QueryRow(`select 1 from allowlist where handle = ?`, handle).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAllowed returns all allow-list entries, oldest first.
func (d *DB) ListAllowed() ([]models.AllowListEntry, error) {
	rows, err := d.db.Query(`select handle, coalesce(reason, ''), added_at from allowlist order by added_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AllowListEntry
	for rows.Next() {
		var e models.AllowListEntry
		var added string
		if err := rows.Scan(&e.Handle, &e.Reason, &added); err != nil {
			return nil, err
		}
		e.AddedAt, _ = time.Parse(time.RFC3339, added)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// InsertAction appends one audit row. Never silently dropped: a storage
// failure propagates because quota accounting depends on it.
func (d *DB) InsertAction(rec *models.ActionRecord) error {
	var detail any
	if rec.Detail != nil {
		data, err := json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("failed to encode action detail: %w", err)
		}
		detail = string(data)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := d.db.Exec(`insert into actions (kind, target, outcome, detail, created_at) values (?, ?, ?, ?, ?)`,
		string(rec.Kind), rec.Target, string(rec.Outcome), detail, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return err
	}
	rec.ID, _ = res.LastInsertId()
	return nil
}

// CountActionsSince returns the number of successful records of the kind at
// or after the given instant.
func (d *DB) CountActionsSince(kind models.ActionKind, since time.Time) (int, error) {
	var n int
	err := d.db.QueryRow(`select count(*) from actions where kind = ? and outcome = ? and created_at >= ?`,
		string(kind), string(models.OutcomeSuccess), since.UTC().Format(time.RFC3339)).Scan(&n)
	return n, err
}

// ListActions returns recent audit rows, newest first, optionally filtered
// by kind.
func (d *DB) ListActions(kind models.ActionKind, limit int) ([]models.ActionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	var rows *sql.Rows
	var err error
	if kind != "" {
		rows, err = d.db.Query(`select id, kind, coalesce(target, ''), outcome, coalesce(detail, ''), created_at from actions where kind = ? order by id desc limit ?`, string(kind), limit)
	} else {
		rows, err = d.db.Query(`select id, kind, coalesce(target, ''), outcome, coalesce(detail, ''), created_at from actions order by id desc limit ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.ActionRecord
	for rows.Next() {
		var rec models.ActionRecord
		var kindStr, outcome, detail, created string
		if err := rows.Scan(&rec.ID, &kindStr, &rec.Target, &outcome, &detail, &created); err != nil {
			return nil, err
		}
		rec.Kind = models.ActionKind(kindStr)
		rec.Outcome = models.Outcome(outcome)
		if detail != "" {
			_ = json.Unmarshal([]byte(detail), &rec.Detail)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveSession persists a session handle with its opaque cookie payload.
func (d *DB) SaveSession(sess *models.Session) error {
	cookies, err := json.Marshal(sess.Cookies)
	if err != nil {
		return fmt.Errorf("failed to encode session cookies: %w", err)
	}
	_, err = d.db.Exec(`
		insert into sessions (session_id, username, cookies, active, created_at, last_used)
		values (?, ?, ?, ?, ?, ?)
		on conflict(session_id) do update set
			cookies = excluded.cookies,
			active = excluded.active,
			last_used = excluded.last_used`,
		sess.ID, sess.Username, string(cookies), boolInt(sess.Active),
		sess.CreatedAt.UTC().Format(time.RFC3339), now())
	return err
}

// GetSession fetches a session by id, nil when unknown.
func (d *DB) GetSession(sessionID string) (*models.Session, error) {
	row := d.db.QueryRow(`select session_id, username, cookies, active, created_at, last_used from sessions where session_id = ?`, sessionID)

	var sess models.Session
	var cookies, created, lastUsed string
	var active int
	err := row.Scan(&sess.ID, &sess.Username, &cookies, &active, &created, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sess.Active = active != 0
	sess.CreatedAt, _ = time.Parse(time.RFC3339, created)
	sess.LastUsed, _ = time.Parse(time.RFC3339, lastUsed)
	if err := json.Unmarshal([]byte(cookies), &sess.Cookies); err != nil {
		return nil, fmt.Errorf("failed to decode session cookies: %w", err)
	}
	return &sess, nil
}

// DeactivateSession marks a session unusable without deleting its audit
// trail linkage.
func (d *DB) DeactivateSession(sessionID string) error {
	_, err := d.db.Exec(`update sessions set active = 0, last_used = ? where session_id = ?`, now(), sessionID)
	return err
}

// Stats aggregates stored accounts and today's unfollow usage. The day
// boundary is computed by the caller in the reference timezone.
func (d *DB) Stats(startOfDay time.Time, dailyLimit int) (*models.Stats, error) {
	s := &models.Stats{DailyLimit: dailyLimit}

	queries := []struct {
		dst   *int
		query string
	}{
		{&s.TotalAccounts, `select count(*) from accounts`},
		{&s.TotalFollowers, `select count(*) from accounts where follows_me = 1`},
		{&s.TotalFollowing, `select count(*) from accounts where i_follow = 1`},
		{&s.NonFollowers, `select count(*) from accounts where i_follow = 1 and follows_me = 0`},
	}
	for _, q := range queries {
		if err := d.db.QueryRow(q.query).Scan(q.dst); err != nil {
			return nil, err
		}
	}

	used, err := d.CountActionsSince(models.ActionUnfollow, startOfDay)
	if err != nil {
		return nil, err
	}
	s.TodayUnfollows = used
	s.RemainingToday = dailyLimit - used
	if s.RemainingToday < 0 {
		s.RemainingToday = 0
	}

	return s, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
