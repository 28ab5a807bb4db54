package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const fixture = `<!doctype html>
<html>
<head><title>Inscrições</title></head>
<body>
	<div class="QuestionBody">
		<label for="store">
			Selecione a sua loja
			<select id="decoy"><option>Inside the label</option></select>
		</label>
		<select id="QR~QID18">
			<option value="">--</option>
			<option value="1">Loulé</option>
			<option value="2">  Albufeira </option>
		</select>
	</div>
	<ul class="ChoiceStructure">
		<li class="Selection"><span class="LabelWrapper"><label>Bordado  livre</label></span></li>
		<li class="Selection" style="display: none"><span class="LabelWrapper"><label>Escondido</label></span></li>
		<li class="Selection"><span class="LabelWrapper" hidden><label>Também escondido</label></span></li>
		<li class="Selection"><label aria-hidden="true">Aria</label></li>
	</ul>
	<input type="hidden" id="token" value="x">
</body>
</html>`

func writeFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.html")
	err := os.WriteFile(path, []byte(fixture), 0600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func openFixture(t *testing.T) Page {
	t.Helper()
	static, err := NewStatic(StaticOptions{})
	if err != nil {
		t.Fatal(err)
	}
	page, err := static.Open(context.Background(), "file://"+writeFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { page.Close() })
	return page
}

func TestStaticElementByID(t *testing.T) {
	ctx := context.Background()
	page := openFixture(t)

	control, err := page.ElementByID(ctx, "QR~QID18")
	require.NoError(t, err)
	options, err := control.OptionTexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"--", "Loulé", "Albufeira"}, options)

	_, err = page.ElementByID(ctx, "QR~QID19")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStaticSelectAfterLabel(t *testing.T) {
	ctx := context.Background()
	page := openFixture(t)

	control, err := page.SelectAfterLabel(ctx, "selecione a sua loja")
	require.Error(t, err, "matching is case sensitive")

	control, err = page.SelectAfterLabel(ctx, "Selecione  a sua loja")
	require.NoError(t, err)
	options, err := control.OptionTexts(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"--", "Loulé", "Albufeira"}, options, "selects nested in the label are skipped")

	_, err = page.SelectAfterLabel(ctx, "Escolha o distrito")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestStaticSelectByText(t *testing.T) {
	ctx := context.Background()
	page := openFixture(t)

	control, err := page.ElementByID(ctx, "QR~QID18")
	require.NoError(t, err)

	require.NoError(t, control.Click(ctx))
	require.NoError(t, control.SelectByText(ctx, "Albufeira"))
	require.True(t, errors.Is(control.SelectByText(ctx, "Loule"), ErrNoSuchOption))

	label, err := page.QueryAll(ctx, "label")
	require.NoError(t, err)
	require.True(t, errors.Is(label[0].SelectByText(ctx, "Loulé"), ErrNotSelect))
	_, err = label[0].OptionTexts(ctx)
	require.True(t, errors.Is(err, ErrNotSelect))
}

func TestStaticVisibility(t *testing.T) {
	ctx := context.Background()
	page := openFixture(t)

	labels, err := page.QueryAll(ctx, "ul.ChoiceStructure li.Selection label")
	require.NoError(t, err)
	require.Len(t, labels, 4)

	expected := []struct {
		text    string
		visible bool
	}{
		{"Bordado livre", true},
		{"Escondido", false},
		{"Também escondido", false},
		{"Aria", false},
	}
	for i, e := range expected {
		text, err := labels[i].Text(ctx)
		require.NoError(t, err)
		require.Equal(t, e.text, text)
		visible, err := labels[i].Visible(ctx)
		require.NoError(t, err)
		require.Equal(t, e.visible, visible, e.text)
	}

	token, err := page.ElementByID(ctx, "token")
	require.NoError(t, err)
	visible, err := token.Visible(ctx)
	require.NoError(t, err)
	require.False(t, visible)
}

func TestStaticHttp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/form" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("content-type", "text/html")
		w.Write([]byte(fixture))
	}))
	defer server.Close()

	static, err := NewStatic(StaticOptions{})
	if err != nil {
		t.Fatal(err)
	}

	page, err := static.Open(context.Background(), server.URL+"/form")
	require.NoError(t, err)
	defer page.Close()
	_, err = page.ElementByID(context.Background(), "QR~QID18")
	require.NoError(t, err)

	_, err = static.Open(context.Background(), server.URL+"/missing")
	require.ErrorContains(t, err, "404")
}
