package portscan

import (
	"errors"
	"testing"

	"github.com/Ullaakut/nmap/v3"
	"github.com/stretchr/testify/assert"

	"github.com/bmetallica/netcatalog/internal/neterr"
)

func TestToleratePartial_EmptyNetworkIsNotAnError(t *testing.T) {
	result := &nmap.Run{}
	err := toleratePartial(result, nil, nil)
	assert.NoError(t, err, "a clean zero-host document (e.g. an empty /30) must not be treated as a parse failure")
}

func TestToleratePartial_PopulatedDocumentSucceeds(t *testing.T) {
	result := &nmap.Run{Hosts: []nmap.Host{{}}}
	err := toleratePartial(result, nil, nil)
	assert.NoError(t, err)
}

func TestToleratePartial_NilResultWithRunErrorIsTransport(t *testing.T) {
	err := toleratePartial(nil, nil, errors.New("exit status 1"))
	assert.Error(t, err)
	assert.True(t, neterr.IsKind(err, neterr.KindTransport))
}

func TestToleratePartial_NilResultWithoutRunErrorIsParse(t *testing.T) {
	err := toleratePartial(nil, nil, nil)
	assert.Error(t, err)
	assert.True(t, neterr.IsKind(err, neterr.KindParse))
}
