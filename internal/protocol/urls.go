package protocol

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// InfoURL addresses the node resolution endpoint.
func InfoURL(base string) string {
	return strings.TrimSuffix(base, "/") + "/info"
}

// SubURL addresses a one-shot sub for key.
func SubURL(base, key, token string) string {
	u := fmt.Sprintf("%s/sub/%s", strings.TrimSuffix(base, "/"), url.PathEscape(key))
	return appendQuery(u, query{token: token})
}

// RepURL addresses a one-shot rep for key.
func RepURL(base, key, token string, psub bool) string {
	u := fmt.Sprintf("%s/rep/%s", strings.TrimSuffix(base, "/"), url.PathEscape(key))
	return appendQuery(u, query{token: token, psub: psub})
}

// PsubURL addresses a persistent subscription for key on the duplex base.
func PsubURL(wsBase, key, token string, shared bool, timeout time.Duration) string {
	u := fmt.Sprintf("%s/psub/%s", strings.TrimSuffix(wsBase, "/"), url.PathEscape(key))
	return appendQuery(u, query{token: token, shared: shared, timeout: timeout})
}

// PrepURL addresses the persistent rep endpoint. Key, token, and psub ride
// in each envelope, not the URL.
func PrepURL(wsBase string) string {
	return strings.TrimSuffix(wsBase, "/") + "/prep"
}

type query struct {
	token   string
	psub    bool
	shared  bool
	timeout time.Duration
}

func appendQuery(u string, q query) string {
	values := url.Values{}
	if q.token != "" {
		values.Set("token", q.token)
	}
	if q.psub {
		values.Set("psub", "1")
	}
	if q.shared {
		values.Set("shared", "1")
	}
	if q.timeout > 0 {
		values.Set("timeout", fmt.Sprintf("%d", int(q.timeout.Seconds())))
	}
	if len(values) == 0 {
		return u
	}
	return u + "?" + values.Encode()
}
