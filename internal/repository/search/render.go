package search

import (
	"encoding/json"
	"fmt"

	essearch "github.com/elastic/go-elasticsearch/v8/typedapi/core/search"
	"github.com/elastic/go-elasticsearch/v8/typedapi/types"

	"github.com/kailas-cloud/imgdex/internal/domain/search/query"
)

// toSearchRequest renders a domain request into the client's typed search body.
func toSearchRequest(req query.Request) (*essearch.Request, error) {
	q, err := toQuery(req.Query)
	if err != nil {
		return nil, err
	}
	size := req.Size
	out := essearch.NewRequest()
	out.Size = &size
	out.Query = q
	out.Source_ = req.Source
	return out, nil
}

func toQuery(c query.Clause) (*types.Query, error) {
	switch c := c.(type) {
	case query.MatchAll:
		return &types.Query{MatchAll: types.NewMatchAllQuery()}, nil

	case query.Match:
		mq := types.MatchQuery{Query: c.Query}
		if c.Boost != 0 {
			boost := float32(c.Boost)
			mq.Boost = &boost
		}
		return &types.Query{Match: map[string]types.MatchQuery{c.Field: mq}}, nil

	case query.Fuzzy:
		fq := types.FuzzyQuery{Value: c.Value}
		if c.Fuzziness != "" {
			fq.Fuzziness = c.Fuzziness
		}
		return &types.Query{Fuzzy: map[string]types.FuzzyQuery{c.Field: fq}}, nil

	case query.Bool:
		bq := types.NewBoolQuery()
		for _, sc := range c.Should {
			q, err := toQuery(sc)
			if err != nil {
				return nil, err
			}
			bq.Should = append(bq.Should, *q)
		}
		if c.MinimumShouldMatch > 0 {
			bq.MinimumShouldMatch = c.MinimumShouldMatch
		}
		return &types.Query{Bool: bq}, nil

	case query.ScriptScore:
		inner, err := toQuery(c.Query)
		if err != nil {
			return nil, err
		}
		vec, err := json.Marshal(c.Script.Params.QueryVector)
		if err != nil {
			return nil, fmt.Errorf("marshal query vector: %w", err)
		}
		source := c.Script.Source
		return &types.Query{ScriptScore: &types.ScriptScoreQuery{
			Query: inner,
			Script: types.Script{
				Source: &source,
				Params: map[string]json.RawMessage{"query_vector": vec},
			},
		}}, nil

	default:
		return nil, fmt.Errorf("unsupported query clause %T", c)
	}
}
