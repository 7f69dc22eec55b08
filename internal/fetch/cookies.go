package fetch

import (
	"bufio"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// loadCookieFile reads a Netscape-format cookie file into jar. The format is
// one cookie per line: domain, include-subdomains flag, path, secure flag,
// expiry, name, value, tab-separated. Lines that fail to parse are skipped.
func loadCookieFile(path string, jar http.CookieJar, logger *zap.Logger) {
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Could not open cookie file", zap.String("path", path), zap.Error(err))
		return
	}
	defer f.Close()

	byDomain := make(map[string][]*http.Cookie)
	count := 0

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// The #HttpOnly_ prefix marks a real cookie, any other # is a comment.
		httpOnly := false
		if strings.HasPrefix(line, "#HttpOnly_") {
			httpOnly = true
			line = strings.TrimPrefix(line, "#HttpOnly_")
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) < 7 {
			continue
		}
		domain := strings.TrimPrefix(fields[0], ".")
		expiry, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			continue
		}
		c := &http.Cookie{
			Name:     fields[5],
			Value:    fields[6],
			Path:     fields[2],
			Domain:   fields[0],
			Secure:   strings.EqualFold(fields[3], "TRUE"),
			HttpOnly: httpOnly,
		}
		if expiry > 0 {
			c.Expires = time.Unix(expiry, 0)
		}
		byDomain[domain] = append(byDomain[domain], c)
		count++
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Error reading cookie file", zap.String("path", path), zap.Error(err))
		return
	}

	for domain, cookies := range byDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: domain}, cookies)
	}
	if count > 0 {
		logger.Info("Loaded cookies", zap.String("path", path), zap.Int("count", count))
	}
}
