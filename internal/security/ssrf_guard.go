package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はメディアホストとの通信に使うSSRF防止機能。
// アップロード・削除リクエストの送信と、メディアホストが返したURLの検証に使用される。
type SSRFGuardService interface {
	// NewSafeClient は接続先IPをダイヤル時に検証するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はURLをDNS解決せずに静的に検証する。
	ValidateURL(rawURL string) error
}

var allowedSchemes = []string{"http", "https"}

// blockedPrefixes は内部ネットワークとみなすアドレス範囲。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"), // CGNAT
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータを含む
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

var blockedHostnames = []string{"localhost", "metadata.google.internal"}

var defaultAllowedPorts = []int{80, 443}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct {
	allowedPorts []int
}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
// portsを省略した場合は80と443のみ許可する。
func NewSSRFGuard(ports ...int) *ssrfGuard {
	if len(ports) == 0 {
		ports = defaultAllowedPorts
	}
	return &ssrfGuard{allowedPorts: ports}
}

// NewSSRFGuardForEndpoint はメディアホストのエンドポイントURLを検証し、
// そのポートを許可リストに加えたガードを返す。
func NewSSRFGuardForEndpoint(endpoint string) (*ssrfGuard, error) {
	guard := NewSSRFGuard()
	if err := guard.ValidateURL(endpoint); err != nil {
		return nil, err
	}
	u, _ := url.Parse(endpoint)
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid port in %s: %w", endpoint, err)
		}
		if !slices.Contains(guard.allowedPorts, port) {
			guard.allowedPorts = append(slices.Clone(guard.allowedPorts), port)
		}
	}
	return guard, nil
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// 接続先IPはDNS解決後にDialerで検証されるため、DNS再バインディングも防げる。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム・ホスト・IPアドレスを静的に検証する。
// ホスト名の名前解決結果はNewSafeClient側で検証される。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if !slices.Contains(allowedSchemes, strings.ToLower(u.Scheme)) {
		return fmt.Errorf("disallowed scheme: %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if isBlockedAddr(addr) {
			return fmt.Errorf("blocked IP address: %s", addr)
		}
		return nil
	}
	if slices.Contains(blockedHostnames, strings.ToLower(strings.TrimSuffix(host, "."))) {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// isBlockedAddr はアドレスが内部ネットワーク範囲に含まれるかを返す。
// IPv4射影IPv6アドレスはIPv4として判定する。
func isBlockedAddr(addr netip.Addr) bool {
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return true
	}
	for _, p := range blockedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
