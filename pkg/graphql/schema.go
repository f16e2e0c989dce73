// Package graphql exposes a read-only view of the storefront (menu, events,
// ads, truck location) for clients that prefer one round trip over several REST
// calls. Nothing here can mutate state.
package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/shopspring/decimal"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/apperr"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/logger"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/response"
)

// Resolvers feed the schema. A nil func resolves to an empty result.
type Resolvers struct {
	Menu     func(ctx context.Context) ([]models.MenuItem, error)
	Events   func(ctx context.Context) ([]models.Event, error)
	Ads      func(ctx context.Context) ([]models.Ad, error)
	Location func(ctx context.Context) (models.TruckLocation, error)
}

func money(field func(models.MenuItem) decimal.Decimal, places int32) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		m, _ := p.Source.(models.MenuItem)
		return field(m).StringFixed(places), nil
	}
}

func timestamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

var menuItemType = graphql.NewObject(graphql.ObjectConfig{
	Name: "MenuItem",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"name":        &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description": &graphql.Field{Type: graphql.String},
		"category":    &graphql.Field{Type: graphql.String},
		"price": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: money(func(m models.MenuItem) decimal.Decimal { return m.Price }, 2),
		},
		"taxRate": &graphql.Field{
			Type:    graphql.NewNonNull(graphql.String),
			Resolve: money(func(m models.MenuItem) decimal.Decimal { return m.TaxRate }, 4),
		},
		"stock":     &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"available": &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
		"imageUrl":  &graphql.Field{Type: graphql.String},
	},
})

var eventType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Event",
	Fields: graphql.Fields{
		"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"title":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"description": &graphql.Field{Type: graphql.String},
		"location":    &graphql.Field{Type: graphql.String},
		"startsAt": &graphql.Field{
			Type: graphql.NewNonNull(graphql.String),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return timestamp(p.Source.(models.Event).StartsAt), nil
			},
		},
		"endsAt": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				if e := p.Source.(models.Event).EndsAt; e != nil {
					return timestamp(*e), nil
				}
				return nil, nil
			},
		},
	},
})

var adType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Ad",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"title":     &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"body":      &graphql.Field{Type: graphql.String},
		"imageUrl":  &graphql.Field{Type: graphql.String},
		"linkUrl":   &graphql.Field{Type: graphql.String},
		"sortOrder": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var locationType = graphql.NewObject(graphql.ObjectConfig{
	Name: "TruckLocation",
	Fields: graphql.Fields{
		"latitude":  &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"longitude": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"address":   &graphql.Field{Type: graphql.String},
		"updatedAt": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return timestamp(p.Source.(models.TruckLocation).UpdatedAt), nil
			},
		},
	},
})

// NewSchema builds the storefront schema over r.
func NewSchema(r Resolvers) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"menu": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(menuItemType))),
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if r.Menu == nil {
						return []models.MenuItem{}, nil
					}
					items, err := r.Menu(p.Context)
					if err != nil {
						return nil, err
					}
					cat, _ := p.Args["category"].(string)
					if cat == "" {
						return items, nil
					}
					out := make([]models.MenuItem, 0, len(items))
					for _, m := range items {
						if m.Category == cat {
							out = append(out, m)
						}
					}
					return out, nil
				},
			},
			"events": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(eventType))),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if r.Events == nil {
						return []models.Event{}, nil
					}
					return r.Events(p.Context)
				},
			},
			"ads": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(adType))),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if r.Ads == nil {
						return []models.Ad{}, nil
					}
					return r.Ads(p.Context)
				},
			},
			"location": &graphql.Field{
				Type: locationType,
				Resolve: func(p graphql.ResolveParams) (any, error) {
					if r.Location == nil {
						return nil, nil
					}
					l, err := r.Location(p.Context)
					if errors.Is(err, apperr.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return l, nil
				},
			},
		},
	})
	return graphql.NewSchema(graphql.SchemaConfig{Query: query})
}

// Request is the standard GraphQL-over-HTTP body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

// Handler executes POSTed queries against schema.
func Handler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil || req.Query == "" {
			response.Fail(w, apperr.New(apperr.KindValidation, apperr.CodeValidation, "a query is required"))
			return
		}

		res := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			OperationName:  req.OperationName,
			VariableValues: req.Variables,
			Context:        r.Context(),
		})
		if res.HasErrors() {
			logger.WithCtx(r.Context()).Debug("graphql: query errors", "count", len(res.Errors))
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res) //nolint:errcheck
	}
}
