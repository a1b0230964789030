package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajharbinger/moat-scoring/pkg/config"
)

// Source supplies the graph centrality signal for a company. A nil result
// means no signal, which scores the same as zero centrality.
type Source interface {
	Centrality(ctx context.Context, companyID uuid.UUID) (*float64, error)
}

const centralityQuery = `
MATCH (c:Company {id: $id})
RETURN c.centrality AS centrality
LIMIT 1`

// Neo4jSource reads a precomputed centrality property from Company nodes.
type Neo4jSource struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jSource connects to Neo4j. It returns nil, nil when no URI is
// configured so callers can treat the graph as optional.
func NewNeo4jSource(ctx context.Context, cfg config.GraphConfig) (*Neo4jSource, error) {
	if cfg.URI == "" {
		return nil, nil
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 20
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("graph: init driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graph: verify connectivity: %w", err)
	}

	return &Neo4jSource{driver: driver, database: cfg.Database}, nil
}

func (s *Neo4jSource) Centrality(ctx context.Context, companyID uuid.UUID) (*float64, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	value, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, centralityQuery, map[string]any{"id": companyID.String()})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		raw, _ := res.Record().Get("centrality")
		return raw, nil
	})
	if err != nil {
		return nil, fmt.Errorf("graph: centrality for %s: %w", companyID, err)
	}
	return toCentrality(value)
}

func (s *Neo4jSource) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// toCentrality normalises a stored property into [0,1].
func toCentrality(value any) (*float64, error) {
	var f float64
	switch v := value.(type) {
	case nil:
		return nil, nil
	case float64:
		f = v
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return nil, fmt.Errorf("graph: unexpected centrality type %T", value)
	}
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return &f, nil
}
