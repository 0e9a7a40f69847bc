package youtube

import (
	"bufio"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// loadCookieJar parses a Netscape-format cookies file (the format browser
// exporters and yt-dlp produce) into a cookie jar scoped to the cookie
// domains it names.
func loadCookieJar(path string) (http.CookieJar, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	byDomain := make(map[string][]*http.Cookie)
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 7 {
			return nil, fmt.Errorf("line %d: expected 7 tab-separated fields, got %d", line, len(fields))
		}
		domain := strings.TrimPrefix(fields[0], ".")
		expiry, _ := strconv.ParseInt(fields[4], 10, 64)
		cookie := &http.Cookie{
			Name:   fields[5],
			Value:  fields[6],
			Path:   fields[2],
			Domain: fields[0],
			Secure: strings.EqualFold(fields[3], "TRUE"),
		}
		if expiry > 0 {
			cookie.Expires = time.Unix(expiry, 0)
		}
		byDomain[domain] = append(byDomain[domain], cookie)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for domain, cookies := range byDomain {
		jar.SetCookies(&url.URL{Scheme: "https", Host: domain}, cookies)
	}
	return jar, nil
}
