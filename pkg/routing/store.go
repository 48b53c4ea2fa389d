package routing

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// routingRuleRow mirrors one routing_rules row.
type routingRuleRow struct {
	ID                  string  `db:"id"`
	Priority            int     `db:"priority"`
	Enabled             bool    `db:"enabled"`
	MatchReleasePattern *string `db:"match_release_pattern"`
	MatchEnvironment    *string `db:"match_environment"`
	MatchLevel          *string `db:"match_level"`
	Target              []byte  `db:"target"`
	TestMode            bool    `db:"test_mode"`
}

// PostgresRuleStore loads error-ticket routing rules for a single org.
// Routing, unlike recording auto-scheduling, is not yet multi-tenant end to
// end — RuleStore.LoadRoutingRules takes no org parameter — so this store
// is bound to one org at construction, matching ATSTicketDispatcher.
type PostgresRuleStore struct {
	db    *sqlx.DB
	orgID string
}

// NewPostgresRuleStore builds a PostgresRuleStore scoped to orgID.
func NewPostgresRuleStore(db *sqlx.DB, orgID string) *PostgresRuleStore {
	return &PostgresRuleStore{db: db, orgID: orgID}
}

// LoadRoutingRules implements RuleStore.
func (s *PostgresRuleStore) LoadRoutingRules(ctx context.Context) ([]Rule, error) {
	var rows []routingRuleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, priority, enabled, match_release_pattern, match_environment, match_level, target, test_mode
		FROM routing_rules
		WHERE org_id = $1 AND enabled
		ORDER BY priority DESC`, s.orgID)
	if err != nil {
		return nil, fmt.Errorf("loading routing rules: %w", err)
	}

	rules := make([]Rule, 0, len(rows))
	for _, row := range rows {
		rules = append(rules, Rule{
			ID:         row.ID,
			Priority:   row.Priority,
			Enabled:    row.Enabled,
			TestMode:   row.TestMode,
			Target:     row.Target,
			Predicates: predicatesFromRow(row),
		})
	}
	return rules, nil
}

func predicatesFromRow(row routingRuleRow) []Predicate {
	var predicates []Predicate
	if row.MatchReleasePattern != nil && *row.MatchReleasePattern != "" {
		predicates = append(predicates, Predicate{Field: "release", Op: OpRegex, Value: *row.MatchReleasePattern})
	}
	if row.MatchEnvironment != nil && *row.MatchEnvironment != "" {
		predicates = append(predicates, Predicate{Field: "environment", Op: OpEquals, Value: *row.MatchEnvironment})
	}
	if row.MatchLevel != nil && *row.MatchLevel != "" {
		predicates = append(predicates, Predicate{Field: "level", Op: OpEquals, Value: *row.MatchLevel})
	}
	return predicates
}
