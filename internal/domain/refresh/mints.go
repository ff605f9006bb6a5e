// Package refresh finds addresses that minted badges since the last run and asks the
// preview pipeline to re-render them.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	platformerrors "poap-og-server/internal/platform/errors"
)

const opMints = "refresh.mints"

// Mint is one badge minted to a collector.
type Mint struct {
	MintedOn         int64  `json:"minted_on"`
	CollectorAddress string `json:"collector_address"`
}

// MintSource lists mints in the inclusive range [from, to].
type MintSource interface {
	MintsBetween(ctx context.Context, from, to time.Time) ([]Mint, error)
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type mintsResponse struct {
	Data struct {
		Poaps []Mint `json:"poaps"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// GraphQLClient queries the compass GraphQL endpoint.
type GraphQLClient struct {
	http *resty.Client
	url  string
}

func NewGraphQLClient(url string, timeout time.Duration) *GraphQLClient {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	return &GraphQLClient{http: client, url: url}
}

func mintsQuery(from, to time.Time) string {
	return fmt.Sprintf(`query {
  poaps(where: { minted_on: { _gte: %d, _lte: %d } }) {
    minted_on
    collector_address
  }
}`, from.Unix(), to.Unix())
}

func (c *GraphQLClient) MintsBetween(ctx context.Context, from, to time.Time) ([]Mint, error) {
	var out mintsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: mintsQuery(from, to)}).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindUpstream, opMints, "query mints", err)
	}
	if resp.IsError() {
		return nil, platformerrors.New(platformerrors.KindUpstream, opMints,
			fmt.Sprintf("graphql endpoint answered %d", resp.StatusCode()))
	}
	if len(out.Errors) > 0 {
		return nil, platformerrors.New(platformerrors.KindUpstream, opMints, "graphql: "+out.Errors[0].Message)
	}
	return out.Data.Poaps, nil
}
