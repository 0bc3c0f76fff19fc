package graph

import (
	"context"
	"fmt"
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// =============================================================================
// Neo4j Contact Graph
// =============================================================================

// ContactGraph implements out.ContactGraph using Neo4j.
//
//	(:Person {email})-[:WORKS_AT]->(:Company {name})
//	(:Person)-[:SENT]->(:Inquiry {id})-[:ABOUT]->(:Category {name})
type ContactGraph struct {
	driver neo4j.DriverWithContext
	dbName string
}

func NewContactGraph(driver neo4j.DriverWithContext, dbName string) *ContactGraph {
	return &ContactGraph{driver: driver, dbName: dbName}
}

// EnsureConstraints creates uniqueness constraints. Existing constraints are
// left alone.
func (g *ContactGraph) EnsureConstraints(ctx context.Context) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: g.dbName})
	defer session.Close(ctx)

	queries := []string{
		`CREATE CONSTRAINT person_email IF NOT EXISTS FOR (p:Person) REQUIRE p.email IS UNIQUE`,
		`CREATE CONSTRAINT company_name IF NOT EXISTS FOR (c:Company) REQUIRE c.name IS UNIQUE`,
		`CREATE CONSTRAINT inquiry_id IF NOT EXISTS FOR (i:Inquiry) REQUIRE i.id IS UNIQUE`,
	}
	for _, q := range queries {
		if _, err := session.Run(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

const recordInquiryQuery = `
	MERGE (p:Person {email: $email})
	SET p.first_name = coalesce($firstName, p.first_name),
		p.last_name = coalesce($lastName, p.last_name),
		p.phone = coalesce($phone, p.phone),
		p.updated_at = timestamp()
	MERGE (i:Inquiry {id: $id})
	SET i.subject = $subject,
		i.intent = $intent,
		i.confidence = $confidence,
		i.source = $source,
		i.processed_at = $processedAt
	MERGE (p)-[:SENT]->(i)
	WITH p, i
	FOREACH (name IN CASE WHEN $company IS NULL THEN [] ELSE [$company] END |
		MERGE (c:Company {name: name})
		SET c.website = coalesce($website, c.website)
		MERGE (p)-[:WORKS_AT]->(c)
	)
	FOREACH (cat IN $categories |
		MERGE (k:Category {name: cat})
		MERGE (i)-[:ABOUT]->(k)
	)
`

// RecordInquiry merges the sender, their company and the inquiry. Results
// without a sender email are skipped.
func (g *ContactGraph) RecordInquiry(ctx context.Context, result *domain.ProcessedEmail) error {
	params := inquiryParams(result)
	if params == nil {
		return nil
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.dbName,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, recordInquiryQuery, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to record inquiry: %w", err)
	}
	return nil
}

func inquiryParams(result *domain.ProcessedEmail) map[string]any {
	if result == nil || result.Extraction == nil {
		return nil
	}
	d := &result.Extraction.Data
	email := strings.ToLower(d.PrimaryEmail())
	if email == "" {
		return nil
	}

	params := map[string]any{
		"id":          result.ID.String(),
		"email":       email,
		"firstName":   nullable(deref(d.FirstName)),
		"lastName":    nullable(deref(d.LastName)),
		"phone":       nullable(d.Phone.First()),
		"company":     nullable(d.PrimaryCompany()),
		"website":     nil,
		"subject":     result.Meta.Subject,
		"source":      string(result.Source),
		"intent":      "",
		"confidence":  0.0,
		"categories":  []string{},
		"processedAt": result.ProcessedAt.Unix(),
	}
	if result.Web != nil {
		params["website"] = nullable(result.Web.Website)
	}
	if result.Intention != nil {
		params["intent"] = string(result.Intention.Intent)
		params["confidence"] = result.Intention.Confidence
		if len(result.Intention.ActiveCategory) > 0 {
			params["categories"] = result.Intention.ActiveCategory
		}
	}
	return params
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nullable maps "" to nil so coalesce keeps the stored value.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ out.ContactGraph = (*ContactGraph)(nil)
