package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/golang/glog"

	"github.com/wanmail/world/actions"
)

// Perform sends seq as one "perform actions" command.
// See https://www.w3.org/TR/webdriver/#perform-actions.
func (d *Driver) Perform(ctx context.Context, seq *actions.Sequence) error {
	data, err := json.Marshal(seq)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/session/%s/actions", d.executor, d.wd.SessionID())
	return execute(ctx, d.client, http.MethodPost, url, data)
}

// reply is the error body of a WebDriver response.
type reply struct {
	Value struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"value"`
}

func execute(ctx context.Context, client *http.Client, method, url string, data []byte) error {
	glog.V(2).Infof("-> %s %s\n%s", method, url, data)
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: reading reply to %s %s: %w", method, url, err)
	}
	glog.V(2).Infof("<- %s\n%s", resp.Status, buf)

	if resp.StatusCode < 400 {
		return nil
	}
	r := new(reply)
	if err := json.Unmarshal(buf, r); err != nil || r.Value.Error == "" {
		return fmt.Errorf("remote: bad server reply status: %s", resp.Status)
	}
	return fmt.Errorf("remote: %s: %s", r.Value.Error, r.Value.Message)
}
