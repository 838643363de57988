package bootstrap

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/clinic-session-sync/internal/chat"
	appconfig "github.com/wolfman30/clinic-session-sync/internal/config"
	"github.com/wolfman30/clinic-session-sync/internal/sessions"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

// Stores bundles the persistence used by the API process.
type Stores struct {
	Sessions sessions.Store
	Chat     chat.Store
	Pool     *pgxpool.Pool // nil in memory mode
	SQL      *sql.DB       // nil in memory mode
}

// Ping reports whether the database is reachable. Memory mode is always ready.
func (s *Stores) Ping(ctx context.Context) error {
	if s.Pool == nil {
		return nil
	}
	return s.Pool.Ping(ctx)
}

// Close releases database handles.
func (s *Stores) Close() {
	if s.SQL != nil {
		_ = s.SQL.Close()
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
}

// BuildStores uses Postgres when DATABASE_URL is set and seeded in-memory
// stores otherwise.
func BuildStores(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*Stores, error) {
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := BuildPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if pool != nil {
		logger.Info("using postgres stores")
		return &Stores{
			Sessions: sessions.NewPostgresStore(pool),
			Chat:     chat.NewPostgresStore(pool),
			Pool:     pool,
			SQL:      BuildSQLDB(pool),
		}, nil
	}

	logger.Warn("DATABASE_URL not set; using in-memory stores with demo users")
	mem := sessions.NewMemoryStore()
	SeedDemoUsers(mem)
	return &Stores{Sessions: mem, Chat: chat.NewMemoryStore()}, nil
}

// SeedDemoUsers adds one user per role so a local instance is usable.
func SeedDemoUsers(store *sessions.MemoryStore) {
	store.AddUser(sessions.User{ID: 1, FirstName: "Ada", LastName: "Admin", Email: "admin@clinic.local", Role: sessions.RoleAdmin})
	store.AddUser(sessions.User{ID: 2, FirstName: "Gregory", LastName: "House", Email: "doctor@clinic.local", ContactNumbers: []string{"+15550100"}, Role: sessions.RoleDoctor})
	store.AddUser(sessions.User{ID: 3, FirstName: "Pat", LastName: "Patient", Email: "patient@clinic.local", Role: sessions.RolePatient})
}
