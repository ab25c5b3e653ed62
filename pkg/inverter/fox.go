package inverter

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/griddash/griddash/pkg/common"
	"github.com/griddash/griddash/pkg/timeutil"
	"github.com/levenlabs/go-lflag"
)

const (
	foxRealTimePath = "/op/v0/device/real/query"
	foxHistoryPath  = "/op/v0/device/history/query"

	varSOC        = "SoC"
	varSOH        = "SoH"
	varProduction = "pvPower"
	varLoad       = "loadsPower"
)

// Fox implements the Provider interface for the FoxESS Open API.
// Requests are POSTs signed with an md5 digest of path, API key and timestamp.
type Fox struct {
	client  *http.Client
	baseURL string
	apiKey  string
	sn      string
}

// configuredFox sets up flags for the FoxESS cloud and returns the instance.
func configuredFox() *Fox {
	f := &Fox{
		client: common.HTTPClient(30 * time.Second),
	}
	baseURL := lflag.String("fox-api-url", "https://www.foxesscloud.com", "URL for the FoxESS Open API")
	apiKey := lflag.String("fox-api-key", "", "API key for the FoxESS Open API")
	sn := lflag.String("fox-inverter-sn", "", "Serial number of the inverter")

	lflag.Do(func() {
		f.baseURL = *baseURL
		f.apiKey = *apiKey
		f.sn = *sn
	})

	return f
}

// Validate ensures the configuration is valid.
func (f *Fox) Validate() error {
	if f.apiKey == "" {
		return fmt.Errorf("fox-api-key is required")
	}
	if f.sn == "" {
		return fmt.Errorf("fox-inverter-sn is required")
	}
	if _, err := url.Parse(f.baseURL); err != nil {
		return fmt.Errorf("failed to parse fox url (%s): %w", f.baseURL, err)
	}
	return nil
}

// foxEnvelope is the outer response common to every FoxESS endpoint. A
// non-zero errno is an upstream business error even on HTTP 200.
type foxEnvelope struct {
	Errno int    `json:"errno"`
	Msg   string `json:"msg"`
}

type foxValue struct {
	Variable string          `json:"variable"`
	Value    json.RawMessage `json:"value"`
}

// floatValue tolerates both numeric and quoted scientific-notation values,
// which the cloud mixes freely.
func (v foxValue) floatValue() (float64, error) {
	var f float64
	if err := json.Unmarshal(v.Value, &f); err == nil {
		return f, nil
	}
	var s string
	if err := json.Unmarshal(v.Value, &s); err != nil {
		return 0, fmt.Errorf("unparseable value for %s: %s", v.Variable, string(v.Value))
	}
	return strconv.ParseFloat(s, 64)
}

// CurrentSOC returns the battery state of charge.
func (f *Fox) CurrentSOC(ctx context.Context) (int, error) {
	values, err := f.queryRealTime(ctx, []string{varSOC})
	if err != nil {
		return 0, err
	}
	soc, ok := values[varSOC]
	if !ok {
		return 0, fmt.Errorf("fox response missing %s", varSOC)
	}
	return int(soc + 0.5), nil
}

// RealTime returns the latest telemetry sample.
func (f *Fox) RealTime(ctx context.Context) (RealTimeValues, error) {
	values, err := f.queryRealTime(ctx, []string{varSOC, varSOH, varProduction, varLoad})
	if err != nil {
		return RealTimeValues{}, err
	}
	return RealTimeValues{
		SOC:         int(values[varSOC] + 0.5),
		SOH:         int(values[varSOH] + 0.5),
		ProductionW: values[varProduction],
		LoadW:       values[varLoad],
	}, nil
}

func (f *Fox) queryRealTime(ctx context.Context, variables []string) (map[string]float64, error) {
	req := struct {
		SN        string   `json:"sn"`
		Variables []string `json:"variables"`
	}{SN: f.sn, Variables: variables}

	body, err := f.post(ctx, foxRealTimePath, req)
	if err != nil {
		return nil, err
	}

	var res struct {
		Result []struct {
			Datas []foxValue `json:"datas"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("failed to parse real-time response: %w", err)
	}
	if len(res.Result) == 0 {
		return nil, fmt.Errorf("fox real-time response had no result")
	}

	values := make(map[string]float64, len(res.Result[0].Datas))
	for _, d := range res.Result[0].Datas {
		v, err := d.floatValue()
		if err != nil {
			return nil, err
		}
		values[d.Variable] = v
	}
	return values, nil
}

// History returns telemetry between start and end.
func (f *Fox) History(ctx context.Context, start, end time.Time) (HistoryValues, error) {
	req := struct {
		SN        string   `json:"sn"`
		Variables []string `json:"variables"`
		Begin     int64    `json:"begin"`
		End       int64    `json:"end"`
	}{
		SN:        f.sn,
		Variables: []string{varProduction, varLoad, varSOC},
		Begin:     start.UnixMilli(),
		End:       end.UnixMilli(),
	}

	body, err := f.post(ctx, foxHistoryPath, req)
	if err != nil {
		return HistoryValues{}, err
	}

	var res struct {
		Result []struct {
			Datas []struct {
				Variable string `json:"variable"`
				Data     []struct {
					Time  string          `json:"time"`
					Value json.RawMessage `json:"value"`
				} `json:"data"`
			} `json:"datas"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return HistoryValues{}, fmt.Errorf("failed to parse history response: %w", err)
	}
	if len(res.Result) == 0 {
		return HistoryValues{}, fmt.Errorf("fox history response had no result")
	}

	var h HistoryValues
	for _, set := range res.Result[0].Datas {
		for _, d := range set.Data {
			v, err := foxValue{Variable: set.Variable, Value: d.Value}.floatValue()
			if err != nil {
				return HistoryValues{}, err
			}
			switch set.Variable {
			case varProduction:
				ts, err := parseFoxTime(d.Time)
				if err != nil {
					return HistoryValues{}, err
				}
				h.Times = append(h.Times, ts)
				h.Production = append(h.Production, v)
			case varLoad:
				h.Load = append(h.Load, v)
			case varSOC:
				h.SOC = append(h.SOC, int(v+0.5))
			}
		}
	}
	return h, nil
}

// parseFoxTime parses the cloud's "2006-01-02 15:04:05 CEST" strings. The zone
// abbreviation is dropped and the wall time interpreted in the household's
// location, which is what the cloud reports for this account.
func parseFoxTime(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, ' '); i > 0 && strings.Count(s, " ") >= 2 {
		s = s[:i]
	}
	t, err := time.ParseInLocation("2006-01-02 15:04:05", s, timeutil.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse fox time (%s): %w", s, err)
	}
	return t.UTC(), nil
}

// post signs and sends a request and returns the raw body after checking both
// the HTTP status and the errno envelope.
func (f *Fox) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	f.signRequest(req, path)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fox request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fox returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read fox response: %w", err)
	}

	var env foxEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to parse fox envelope: %w", err)
	}
	if env.Errno != 0 {
		return nil, fmt.Errorf("fox cloud errno %d: %s", env.Errno, env.Msg)
	}
	return raw, nil
}

// signRequest adds the headers the Open API requires. The signature is the
// md5 hex digest of path, key and timestamp joined by the literal characters
// `\r\n` (backslash-r-backslash-n, not CRLF) as the API specifies.
func (f *Fox) signRequest(req *http.Request, path string) {
	ts := time.Now().UnixMilli()
	signature := fmt.Sprintf(`%s\r\n%s\r\n%d`, path, f.apiKey, ts)
	digest := md5.Sum([]byte(signature))

	req.Header.Set("token", f.apiKey)
	req.Header.Set("timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("signature", hex.EncodeToString(digest[:]))
	req.Header.Set("lang", "en")
}
