package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestChromeAllocatorOptions(t *testing.T) {
	headless := NewChrome(ChromeOptions{Headless: true, ExecPath: "/usr/bin/chromium"})
	opts := headless.allocatorOptions(t.TempDir())
	require.Greater(t, len(opts), 3)

	// each session owns a separate profile dir
	chrome := NewChrome(ChromeOptions{ProfileRoot: t.TempDir()})
	first, err := os.MkdirTemp(chrome.opts.ProfileRoot, "workshop-monitor-profile-")
	if err != nil {
		t.Fatal(err)
	}
	chrome.trackProfile(first)
	second, err := os.MkdirTemp(chrome.opts.ProfileRoot, "workshop-monitor-profile-")
	if err != nil {
		t.Fatal(err)
	}
	chrome.trackProfile(second)
	require.NotEqual(t, first, second)

	require.NoError(t, chrome.releaseProfile(first))
	_, err = os.Stat(first)
	require.True(t, os.IsNotExist(err))

	require.NoError(t, chrome.Cleanup())
	_, err = os.Stat(second)
	require.True(t, os.IsNotExist(err))
	require.Empty(t, chrome.profiles)
}

func TestJsString(t *testing.T) {
	require.Equal(t, `"QR~QID18"`, jsString("QR~QID18"))
	require.Equal(t, `"say \"hi\"</script>"`, jsString(`say "hi"</script>`))
}

func startHeadlessShell(t *testing.T) string {
	t.Helper()
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "chromedp/headless-shell:latest",
			ExposedPorts: []string{"9222/tcp"},
			WaitingFor:   wait.ForListeningPort("9222/tcp"),
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		err := container.Terminate(context.Background())
		if err != nil {
			t.Fatal(err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "9222/tcp", "http")
	if err != nil {
		t.Fatal(err)
	}
	return endpoint
}

func TestChromePage(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}

	chrome := NewChrome(ChromeOptions{RemoteURL: startHeadlessShell(t)})
	defer chrome.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	page, err := chrome.Open(ctx, fmt.Sprintf("data:text/html,%s", url.PathEscape(fixture)))
	require.NoError(t, err)
	defer page.Close()

	control, err := page.ElementByID(ctx, "QR~QID18")
	require.NoError(t, err)
	require.NoError(t, control.Click(ctx))
	options, err := control.OptionTexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"--", "Loulé", "Albufeira"}, options)
	require.NoError(t, control.SelectByText(ctx, "Loulé"))
	require.True(t, errors.Is(control.SelectByText(ctx, "Loule"), ErrNoSuchOption))

	byLabel, err := page.SelectAfterLabel(ctx, "Selecione a sua loja")
	require.NoError(t, err)
	options, err = byLabel.OptionTexts(ctx)
	require.NoError(t, err)
	require.Len(t, options, 3)

	labels, err := page.QueryAll(ctx, "ul.ChoiceStructure li.Selection span.LabelWrapper > label")
	require.NoError(t, err)
	require.Len(t, labels, 3)

	text, err := labels[0].Text(ctx)
	require.NoError(t, err)
	require.Equal(t, "Bordado livre", text)
	visible, err := labels[0].Visible(ctx)
	require.NoError(t, err)
	require.True(t, visible)
	visible, err = labels[1].Visible(ctx)
	require.NoError(t, err)
	require.False(t, visible)

	_, err = page.ElementByID(ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	require.NoError(t, page.Close())
	require.NoError(t, page.Close())
}
