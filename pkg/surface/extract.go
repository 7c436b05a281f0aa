package surface

import (
	"encoding/json"
	"fmt"

	"igmanager/pkg/models"
)

// Page is one extracted slice of a relationship list: the accounts it
// renders plus the pagination state needed to reach the rest.
type Page struct {
	Accounts []models.Account
	HasMore  bool
	Cursor   string
}

// Extractor is one capability-probing strategy: a predicate that recognizes
// a rendered payload shape paired with the extraction for that shape.
type Extractor struct {
	Name    string
	Match   func(payload []byte) bool
	Extract func(payload []byte) (Page, error)
}

// Chain is an ordered list of extractors tried in fixed priority order;
// the first whose predicate matches wins.
type Chain []Extractor

// Extract runs the chain over a rendered payload. Returns the winning
// strategy's name alongside the page, or ErrStructureNotFound when nothing
// matches.
func (c Chain) Extract(payload []byte) (Page, string, error) {
	for _, e := range c {
		if !e.Match(payload) {
			continue
		}
		page, err := e.Extract(payload)
		if err != nil {
			return Page{}, e.Name, fmt.Errorf("extractor %s: %w", e.Name, err)
		}
		return page, e.Name, nil
	}
	return Page{}, "", ErrStructureNotFound
}

// DefaultChain covers the payload shapes the platform web API is known to
// serve for relationship lists, newest first.
func DefaultChain(kind models.ListKind) Chain {
	return Chain{
		restUsersExtractor(kind),
		graphEdgeExtractor(kind),
	}
}

// restUsersExtractor handles the REST friendships shape:
// {"users":[...], "big_list":bool, "next_max_id":"...", "status":"ok"}.
func restUsersExtractor(kind models.ListKind) Extractor {
	type restUser struct {
		PK            json.Number `json:"pk"`
		Username      string      `json:"username"`
		FullName      string      `json:"full_name"`
		IsVerified    bool        `json:"is_verified"`
		FollowerCount int         `json:"follower_count"`
	}
	type restPage struct {
		Users     []restUser `json:"users"`
		BigList   bool       `json:"big_list"`
		NextMaxID string     `json:"next_max_id"`
		Status    string     `json:"status"`
	}

	return Extractor{
		Name: "rest_users",
		Match: func(payload []byte) bool {
			var probe struct {
				Users json.RawMessage `json:"users"`
			}
			return json.Unmarshal(payload, &probe) == nil && probe.Users != nil
		},
		Extract: func(payload []byte) (Page, error) {
			var p restPage
			if err := json.Unmarshal(payload, &p); err != nil {
				return Page{}, err
			}
			page := Page{
				HasMore: p.NextMaxID != "",
				Cursor:  p.NextMaxID,
			}
			for _, u := range p.Users {
				if u.Username == "" {
					continue
				}
				page.Accounts = append(page.Accounts, accountFor(kind, models.Account{
					Handle:        u.Username,
					ExternalID:    u.PK.String(),
					FullName:      u.FullName,
					Verified:      u.IsVerified,
					FollowerCount: u.FollowerCount,
				}))
			}
			return page, nil
		},
	}
}

// graphEdgeExtractor handles the GraphQL shape with edge_followed_by /
// edge_follow connections.
func graphEdgeExtractor(kind models.ListKind) Extractor {
	edgeKey := "edge_followed_by"
	if kind == models.ListFollowing {
		edgeKey = "edge_follow"
	}

	type graphNode struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		FullName   string `json:"full_name"`
		IsVerified bool   `json:"is_verified"`
	}
	type graphConnection struct {
		Count    int `json:"count"`
		PageInfo struct {
			HasNextPage bool   `json:"has_next_page"`
			EndCursor   string `json:"end_cursor"`
		} `json:"page_info"`
		Edges []struct {
			Node graphNode `json:"node"`
		} `json:"edges"`
	}

	parse := func(payload []byte) (graphConnection, bool) {
		var probe struct {
			Data struct {
				User map[string]json.RawMessage `json:"user"`
			} `json:"data"`
		}
		if err := json.Unmarshal(payload, &probe); err != nil {
			return graphConnection{}, false
		}
		raw, ok := probe.Data.User[edgeKey]
		if !ok {
			return graphConnection{}, false
		}
		var conn graphConnection
		if err := json.Unmarshal(raw, &conn); err != nil {
			return graphConnection{}, false
		}
		return conn, true
	}

	return Extractor{
		Name: "graph_" + edgeKey,
		Match: func(payload []byte) bool {
			_, ok := parse(payload)
			return ok
		},
		Extract: func(payload []byte) (Page, error) {
			conn, ok := parse(payload)
			if !ok {
				return Page{}, fmt.Errorf("missing %s connection", edgeKey)
			}
			page := Page{
				HasMore: conn.PageInfo.HasNextPage,
				Cursor:  conn.PageInfo.EndCursor,
			}
			for _, e := range conn.Edges {
				if e.Node.Username == "" {
					continue
				}
				page.Accounts = append(page.Accounts, accountFor(kind, models.Account{
					Handle:     e.Node.Username,
					ExternalID: e.Node.ID,
					FullName:   e.Node.FullName,
					Verified:   e.Node.IsVerified,
				}))
			}
			return page, nil
		},
	}
}

// accountFor stamps the relationship flag the observing pass is entitled to
// set: a followers pass proves FollowsMe, a following pass proves IFollow.
func accountFor(kind models.ListKind, a models.Account) models.Account {
	switch kind {
	case models.ListFollowers:
		a.FollowsMe = true
	case models.ListFollowing:
		a.IFollow = true
	}
	return a
}
