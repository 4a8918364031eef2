// Package steps binds the Gherkin step vocabulary to the harness and runs
// feature files with godog.
package steps

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/abel-apply/apicheck/internal/assert"
	"github.com/abel-apply/apicheck/internal/auth"
	"github.com/abel-apply/apicheck/internal/harness"
	"github.com/abel-apply/apicheck/internal/request"
	"github.com/abel-apply/apicheck/internal/stash"
)

// LoginTag marks scenarios that need the login bootstrap before they run.
const LoginTag = "@Login"

// Bindings holds the state of one scenario and implements its steps.
type Bindings struct {
	suite *Suite
	hc    *harness.Context
}

func newBindings(s *Suite) *Bindings {
	return &Bindings{suite: s, hc: s.run.NewContext()}
}

// InitializeScenario registers every step and the scenario hooks.
func (s *Suite) InitializeScenario(sc *godog.ScenarioContext) {
	b := newBindings(s)

	sc.Before(func(ctx context.Context, scn *godog.Scenario) (context.Context, error) {
		b.hc = s.run.NewContext()
		s.logger.Debug().Str("scenario", scn.Name).Msg("scenario starting")
		if hasTag(scn, LoginTag) {
			if err := s.boot.Ensure(ctx, b.hc); err != nil {
				return ctx, fmt.Errorf("login bootstrap: %w", err)
			}
		}
		return ctx, nil
	})
	sc.After(func(ctx context.Context, scn *godog.Scenario, err error) (context.Context, error) {
		if err != nil {
			s.logger.Warn().Str("scenario", scn.Name).Err(err).Msg("scenario failed")
			return ctx, nil
		}
		s.logger.Debug().Str("scenario", scn.Name).Msg("scenario passed")
		return ctx, nil
	})

	// context
	sc.Step(`^I set base URL to "([^"]*)"$`, b.setBaseURL)
	sc.Step(`^I am logged in as "([^"]*)" with password "([^"]*)"$`, b.loggedInAs)
	sc.Step(`^I set bearer token "([^"]*)"$`, b.setBearerToken)
	sc.Step(`^I store the value "([^"]*)" as "([^"]*)"$`, b.storeValue)

	// actions
	sc.Step(`^I send a (\w+) request to "([^"]*)"$`, b.sendRequest)
	sc.Step(`^I send a (\w+) request to "([^"]*)" with body:$`, b.sendRequestWithBody)
	sc.Step(`^I send a (\w+) request to "([^"]*)" with query parameters:$`, b.sendRequestWithQuery)
	sc.Step(`^I send a (\w+) request to "([^"]*)" with headers:$`, b.sendRequestWithHeaders)
	sc.Step(`^I send a (\w+) request to "([^"]*)" expecting a response within (\d+) ms$`, b.sendRequestWithin)

	// assertions
	sc.Step(`^the response status code should be (\d+)$`, b.statusCodeShouldBe)
	sc.Step(`^I store the response field "([^"]*)" as "([^"]*)"$`, b.storeResponseField)
	sc.Step(`^I store the response path "([^"]*)" as "([^"]*)"$`, b.storeResponsePath)
	sc.Step(`^the response body should partially match:$`, b.bodyShouldPartiallyMatch)
	sc.Step(`^the response body should exactly match:$`, b.bodyShouldExactlyMatch)
	sc.Step(`^the response body should contain fields:$`, b.bodyShouldContainFields)
	sc.Step(`^the response body should contain "([^"]*)"$`, b.bodyShouldContain)
	sc.Step(`^the response should match schema:$`, b.shouldMatchSchema)
	sc.Step(`^the response should match schema from file "([^"]*)"$`, b.shouldMatchSchemaFile)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, b.headerShouldBe)
	sc.Step(`^the response time should be less than (\d+) ms$`, b.responseTimeShouldBeBelow)
}

func hasTag(scn *godog.Scenario, tag string) bool {
	for _, t := range scn.Tags {
		if t.Name == tag {
			return true
		}
	}
	return false
}

func (b *Bindings) setBaseURL(url string) error {
	b.hc.SetBaseURL(b.hc.Resolve(url))
	return nil
}

func (b *Bindings) loggedInAs(ctx context.Context, username, password string) error {
	_, err := b.suite.boot.Login(ctx, b.hc, b.hc.Resolve(username), b.hc.Resolve(password))
	return err
}

func (b *Bindings) setBearerToken(token string) error {
	return auth.SetBearer(b.hc, b.hc.Resolve(token))
}

func (b *Bindings) storeValue(value, key string) error {
	b.hc.Stash().Set(key, stash.String(b.hc.Resolve(value)))
	return nil
}

func (b *Bindings) send(ctx context.Context, d request.Description) error {
	d.Endpoint = b.hc.Resolve(d.Endpoint)
	d.Body = b.hc.Resolve(d.Body)
	_, err := request.Send(ctx, b.hc, d)
	return err
}

func (b *Bindings) sendRequest(ctx context.Context, method, endpoint string) error {
	return b.send(ctx, request.Description{Method: method, Endpoint: endpoint})
}

func (b *Bindings) sendRequestWithBody(ctx context.Context, method, endpoint string, body *godog.DocString) error {
	return b.send(ctx, request.Description{Method: method, Endpoint: endpoint, Body: body.Content})
}

func (b *Bindings) sendRequestWithQuery(ctx context.Context, method, endpoint string, table *godog.Table) error {
	params, err := b.tableMap(table, "name", "value")
	if err != nil {
		return err
	}
	return b.send(ctx, request.Description{Method: method, Endpoint: endpoint, QueryParams: params})
}

func (b *Bindings) sendRequestWithHeaders(ctx context.Context, method, endpoint string, table *godog.Table) error {
	headers, err := b.tableMap(table, "name", "value")
	if err != nil {
		return err
	}
	return b.send(ctx, request.Description{Method: method, Endpoint: endpoint, Headers: headers})
}

func (b *Bindings) sendRequestWithin(ctx context.Context, method, endpoint string, ms int) error {
	return b.send(ctx, request.Description{
		Method:       method,
		Endpoint:     endpoint,
		ResponseTime: time.Duration(ms) * time.Millisecond,
	})
}

func (b *Bindings) statusCodeShouldBe(code int) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.Status(resp, code)
}

func (b *Bindings) storeResponseField(field, key string) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	v, err := assert.Field(resp, field)
	if err != nil {
		return err
	}
	b.hc.Stash().Put(key, v)
	b.hc.Logger().Debug().Str("field", field).Str("key", key).Msg("stored response field")
	return nil
}

func (b *Bindings) storeResponsePath(path, key string) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	v, err := assert.Path(resp, path)
	if err != nil {
		return err
	}
	b.hc.Stash().Put(key, v)
	b.hc.Logger().Debug().Str("path", path).Str("key", key).Msg("stored response path")
	return nil
}

func (b *Bindings) bodyShouldPartiallyMatch(expected *godog.DocString) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.PartialMatch(resp, b.hc.Resolve(expected.Content))
}

func (b *Bindings) bodyShouldExactlyMatch(expected *godog.DocString) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.ExactMatch(resp, b.hc.Resolve(expected.Content))
}

func (b *Bindings) bodyShouldContainFields(table *godog.Table) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	rows, err := b.tableRows(table, "field", "value")
	if err != nil {
		return err
	}
	fields := make([]assert.Row, len(rows))
	for i, r := range rows {
		fields[i] = assert.Row{Field: r[0], Value: r[1]}
	}
	return assert.Fields(resp, fields)
}

func (b *Bindings) bodyShouldContain(text string) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.BodyContains(resp, b.hc.Resolve(text))
}

func (b *Bindings) shouldMatchSchema(schema *godog.DocString) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.Schema(resp, schema.Content)
}

func (b *Bindings) shouldMatchSchemaFile(path string) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.SchemaFile(resp, b.suite.schemaRoot, b.hc.Resolve(path))
}

func (b *Bindings) headerShouldBe(name, value string) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.Header(resp, name, b.hc.Resolve(value))
}

func (b *Bindings) responseTimeShouldBeBelow(ms int) error {
	resp, err := b.hc.LastResponse()
	if err != nil {
		return err
	}
	return assert.ResponseTime(resp, time.Duration(ms)*time.Millisecond)
}

// tableRows reads a two-column table whose header row names keyCol and valCol
// and returns its data rows with placeholders resolved.
func (b *Bindings) tableRows(table *godog.Table, keyCol, valCol string) ([][2]string, error) {
	if table == nil || len(table.Rows) == 0 {
		return nil, fmt.Errorf("expected a table with a %q | %q header", keyCol, valCol)
	}

	keyIdx, valIdx := -1, -1
	for i, cell := range table.Rows[0].Cells {
		switch strings.TrimSpace(cell.Value) {
		case keyCol:
			keyIdx = i
		case valCol:
			valIdx = i
		}
	}
	if keyIdx < 0 || valIdx < 0 {
		return nil, fmt.Errorf("table header must contain %q and %q columns", keyCol, valCol)
	}

	rows := make([][2]string, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		rows = append(rows, [2]string{
			row.Cells[keyIdx].Value,
			b.hc.Resolve(row.Cells[valIdx].Value),
		})
	}
	return rows, nil
}

func (b *Bindings) tableMap(table *godog.Table, keyCol, valCol string) (map[string]string, error) {
	rows, err := b.tableRows(table, keyCol, valCol)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r[0]] = r[1]
	}
	return out, nil
}
