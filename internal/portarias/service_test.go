package portarias_test

import (
	"bytes"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"docs-cataguases/portal-backend/internal/apperrors"
	"docs-cataguases/portal-backend/internal/portarias"
)

func TestCreatePortariaValidation(t *testing.T) {
	e := newEnv(t, defaultConfig())

	_, err := e.service.CreatePortaria(e.ctx, e.operador, portarias.CreatePortariaRequest{Titulo: " ", ModeloID: e.modelo.ID})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = e.service.CreatePortaria(e.ctx, e.operador, portarias.CreatePortariaRequest{Titulo: "X", ModeloID: uuid.New()})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	obras, err := e.service.CreateModelo(e.ctx, e.admin, portarias.CreateModeloRequest{
		Nome: "Obras", Conteudo: "Autoriza {{obra}}", SecretariaID: "sec-obras",
	})
	require.NoError(t, err)
	_, err = e.service.CreatePortaria(e.ctx, e.operador, portarias.CreatePortariaRequest{Titulo: "X", ModeloID: obras.ID})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	// An operador cannot create in another secretaria.
	_, err = e.service.CreatePortaria(e.ctx, e.operador, portarias.CreatePortariaRequest{
		Titulo: "X", ModeloID: e.modelo.ID, SecretariaID: "sec-obras",
	})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	p := e.draft(t, e.operador)
	assert.Equal(t, portarias.StatusDraft, p.Status)
	assert.Equal(t, "sec-rh", p.SecretariaID)
	assert.Equal(t, e.operador.ID, p.CriadoPorID)
}

func TestCreateModeloRequiresAdmin(t *testing.T) {
	e := newEnv(t, defaultConfig())
	_, err := e.service.CreateModelo(e.ctx, e.secretario, portarias.CreateModeloRequest{Nome: "X", Conteudo: "{{a}}"})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	assert.Equal(t, []string{"cargo", "servidor"}, []string(e.modelo.Variaveis))

	list, err := e.service.ListModelos(e.ctx, e.operador, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestListPortariasVisibility(t *testing.T) {
	e := newEnv(t, defaultConfig())
	mine := e.draft(t, e.operador)
	e.draft(t, e.outroOperador)
	e.draft(t, e.secretario)

	list, err := e.service.ListPortarias(e.ctx, e.operador, portarias.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = e.service.ListPortarias(e.ctx, e.secretario, portarias.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = e.service.ListPortarias(e.ctx, e.secretario, portarias.ListFilter{SecretariaID: "sec-obras"})
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = e.service.ListPortarias(e.ctx, e.prefeito, portarias.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = e.service.GetPortaria(e.ctx, e.outroOperador, mine.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))
}

func TestUpdatePortaria(t *testing.T) {
	e := newEnv(t, defaultConfig())
	p := e.draft(t, e.operador)

	titulo := "Nomeação retificada"
	got, err := e.service.UpdatePortaria(e.ctx, e.operador, p.ID, portarias.UpdatePortariaRequest{Titulo: &titulo})
	require.NoError(t, err)
	assert.Equal(t, titulo, got.Titulo)

	_, err = e.service.UpdatePortaria(e.ctx, e.outroOperador, p.ID, portarias.UpdatePortariaRequest{Titulo: &titulo})
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization))

	_, err = e.do(p, portarias.ActionSubmit, e.operador, "")
	require.NoError(t, err)
	_, err = e.service.UpdatePortaria(e.ctx, e.operador, p.ID, portarias.UpdatePortariaRequest{Titulo: &titulo})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestDeletePortaria(t *testing.T) {
	e := newEnv(t, defaultConfig())
	p := e.draft(t, e.operador)

	err := e.service.DeletePortaria(e.ctx, e.operador, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindAuthorization), "operadores never delete")

	require.NoError(t, e.service.DeletePortaria(e.ctx, e.secretario, p.ID))
	_, err = e.store.GetPortaria(e.ctx, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	submitted := e.draft(t, e.operador)
	_, err = e.do(submitted, portarias.ActionSubmit, e.operador, "")
	require.NoError(t, err)
	err = e.service.DeletePortaria(e.ctx, e.admin, submitted.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestDownloadAndIntegrity(t *testing.T) {
	e := newEnv(t, defaultConfig())
	p := e.draft(t, e.operador)

	_, err := e.service.DownloadLink(e.ctx, e.operador, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	submitted, err := e.do(p, portarias.ActionSubmit, e.operador, "")
	require.NoError(t, err)

	link, err := e.service.DownloadLink(e.ctx, e.operador, p.ID)
	require.NoError(t, err)
	assert.Contains(t, link.URL, url.PathEscape(submitted.PDFKey))

	info, err := e.service.VerifyIntegrity(e.ctx, e.operador, p.ID)
	require.NoError(t, err)
	assert.True(t, info.IsValid)

	require.NoError(t, e.objects.Upload(e.ctx, submitted.PDFKey, strings.NewReader("tampered"), "application/pdf", nil))
	info, err = e.service.VerifyIntegrity(e.ctx, e.operador, p.ID)
	require.NoError(t, err)
	assert.False(t, info.IsValid)

	require.NoError(t, e.objects.Delete(e.ctx, submitted.PDFKey))
	_, err = e.service.VerifyIntegrity(e.ctx, e.operador, p.ID)
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestExportRegister(t *testing.T) {
	cfg := defaultConfig()
	cfg.RequireReview = false
	e := newEnv(t, cfg)

	published := e.draft(t, e.operador)
	_, err := e.do(published, portarias.ActionSubmit, e.operador, "")
	require.NoError(t, err)
	_, err = e.do(published, portarias.ActionSign, e.secretario, "")
	require.NoError(t, err)
	e.draft(t, e.operador)

	var buf bytes.Buffer
	require.NoError(t, e.service.ExportRegister(e.ctx, e.secretario, portarias.ListFilter{}, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Registro")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the published portaria")
	assert.Equal(t, "Número", rows[0][0])
	assert.Equal(t, "001/2025", rows[1][0])
	assert.Equal(t, "Nomeação de servidor", rows[1][2])
}
