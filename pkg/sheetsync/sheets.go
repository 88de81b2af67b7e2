package sheetsync

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sheetsBaseURL = "https://sheets.googleapis.com"
	sheetsScope   = "https://www.googleapis.com/auth/spreadsheets"
)

// serviceAccountKey is the subset of a Google service-account JSON key file
// needed for the OAuth JWT-bearer grant.
type serviceAccountKey struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// SheetsClient is a TabularSource over the Google Sheets values API. It
// authenticates with a service-account JWT assertion and maps spreadsheet
// columns to canonical keys via the sync config.
type SheetsClient struct {
	cfg     *Config
	http    *http.Client
	logger  *slog.Logger
	baseURL string

	key        serviceAccountKey
	signingKey *rsa.PrivateKey

	mu       sync.Mutex
	token    string
	tokenExp time.Time
	// headers is the sheet's header row as last read; headerKeys maps each
	// column index to its canonical key (empty for unmapped columns).
	headers    []string
	headerKeys []string
}

// NewSheetsClient builds a client from the sync config, loading the
// service-account credentials file.
func NewSheetsClient(cfg *Config, logger *slog.Logger) (*SheetsClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	raw, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var key serviceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, fmt.Errorf("credentials missing client_email or private_key")
	}
	signingKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(key.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &SheetsClient{
		cfg:        cfg,
		http:       &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		baseURL:    sheetsBaseURL,
		key:        key,
		signingKey: signingKey,
	}, nil
}

// accessToken returns a cached OAuth token, minting a new one via the
// JWT-bearer grant when the cache is stale.
func (c *SheetsClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp.Add(-time.Minute)) {
		return c.token, nil
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.key.ClientEmail,
		"scope": sheetsScope,
		"aud":   c.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(c.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{
		"grant_type": {"urn:ietf:params:oauth:grant-type:jwt-bearer"},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.key.TokenURI,
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("request token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, body)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.token = tokenResp.AccessToken
	c.tokenExp = now.Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *SheetsClient) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = strings.NewReader(string(raw))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sheets request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("sheets API returned %d: %s", resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Ping verifies the spreadsheet is reachable with the configured credentials.
func (c *SheetsClient) Ping(ctx context.Context) error {
	path := fmt.Sprintf("/v4/spreadsheets/%s?fields=spreadsheetId",
		url.PathEscape(c.cfg.SpreadsheetID))
	return c.doJSON(ctx, http.MethodGet, path, nil, nil)
}

type valueRange struct {
	Values [][]string `json:"values"`
}

// Rows reads the sheet, mapping the header row through the column config.
// The row ref is the 1-based sheet row number. Unparseable modified-at cells
// leave the marker nil rather than failing the read.
func (c *SheetsClient) Rows(ctx context.Context) ([]Row, error) {
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?majorDimension=ROWS",
		url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(c.cfg.SheetName))

	var vr valueRange
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &vr); err != nil {
		return nil, err
	}
	if len(vr.Values) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", c.cfg.SheetName)
	}

	c.setHeaders(vr.Values[0])

	rows := make([]Row, 0, len(vr.Values)-1)
	for i, cells := range vr.Values[1:] {
		row := Row{
			Ref:    strconv.Itoa(i + 2),
			Values: map[string]string{},
		}
		for col, key := range c.headerKeys {
			if key == "" || col >= len(cells) {
				continue
			}
			if key == ColModifiedAt {
				ts, err := c.cfg.ParseModifiedAt(cells[col])
				if err != nil {
					c.logger.Warn("ignoring bad modified-at cell",
						"row", row.Ref, "error", err)
					continue
				}
				row.ModifiedAt = ts
				continue
			}
			row.Values[key] = cells[col]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *SheetsClient) setHeaders(headers []string) {
	byHeader := make(map[string]string, len(c.cfg.Columns))
	for key, header := range c.cfg.Columns {
		byHeader[header] = key
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = headers
	c.headerKeys = make([]string, len(headers))
	for i, h := range headers {
		c.headerKeys[i] = byHeader[h]
	}
}

// ensureHeaders loads the header row if no Rows call has cached it yet.
func (c *SheetsClient) ensureHeaders(ctx context.Context) error {
	c.mu.Lock()
	loaded := len(c.headers) > 0
	c.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := c.Rows(ctx)
	return err
}

// renderCells lays out a row's values in the sheet's header order.
func (c *SheetsClient) renderCells(row Row) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	cells := make([]string, len(c.headers))
	for i, key := range c.headerKeys {
		switch {
		case key == "":
		case key == ColModifiedAt:
			if row.ModifiedAt != nil {
				cells[i] = c.cfg.FormatModifiedAt(*row.ModifiedAt)
			}
		default:
			cells[i] = row.Values[key]
		}
	}
	return cells
}

type appendResponse struct {
	Updates struct {
		UpdatedRange string `json:"updatedRange"`
	} `json:"updates"`
}

// Append adds a row at the bottom of the sheet and returns its row number.
func (c *SheetsClient) Append(ctx context.Context, row Row) (string, error) {
	if err := c.ensureHeaders(ctx); err != nil {
		return "", err
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append?valueInputOption=RAW&insertDataOption=INSERT_ROWS",
		url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(c.cfg.SheetName))
	body := map[string]any{"values": [][]string{c.renderCells(row)}}

	var resp appendResponse
	if err := c.doJSON(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	ref, err := rowNumberFromRange(resp.Updates.UpdatedRange)
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Update overwrites the row at the given row number.
func (c *SheetsClient) Update(ctx context.Context, ref string, row Row) error {
	if err := c.ensureHeaders(ctx); err != nil {
		return err
	}
	if _, err := strconv.Atoi(ref); err != nil {
		return fmt.Errorf("invalid row ref %q", ref)
	}

	cells := c.renderCells(row)
	rangeRef := fmt.Sprintf("%s!A%s:%s%s",
		c.cfg.SheetName, ref, columnLetter(len(cells)), ref)
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		url.PathEscape(c.cfg.SpreadsheetID), url.PathEscape(rangeRef))
	body := map[string]any{"values": [][]string{cells}}

	return c.doJSON(ctx, http.MethodPut, path, body, nil)
}

// rowNumberFromRange extracts the row number from a range like "Assets!A7:I7".
func rowNumberFromRange(rangeRef string) (string, error) {
	idx := strings.LastIndex(rangeRef, "!")
	cellRef := rangeRef[idx+1:]
	start := cellRef
	if colon := strings.Index(cellRef, ":"); colon >= 0 {
		start = cellRef[:colon]
	}
	digits := strings.TrimLeft(start, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	if digits == "" {
		return "", fmt.Errorf("cannot parse updated range %q", rangeRef)
	}
	if _, err := strconv.Atoi(digits); err != nil {
		return "", fmt.Errorf("cannot parse updated range %q", rangeRef)
	}
	return digits, nil
}

// columnLetter converts a 1-based column count to its A1-notation letter.
func columnLetter(n int) string {
	letters := ""
	for n > 0 {
		n--
		letters = string(rune('A'+n%26)) + letters
		n /= 26
	}
	return letters
}
