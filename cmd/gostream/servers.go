package main

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/alvarorichard/Gostream/pkg/gostream/types"
)

// collectServers reads the servers file, if any, then appends the --server
// flags in order
func collectServers(fs afero.Fs, path string, flags []string) ([]types.Server, error) {
	var servers []types.Server
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.Wrap(err, "read servers file")
		}
		if err := json.Unmarshal(data, &servers); err != nil {
			return nil, errors.Wrapf(err, "decode servers file %s", path)
		}
	}

	for _, s := range flags {
		server, err := types.ParseServer(s)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}

	if len(servers) == 0 {
		return nil, errors.New("no servers given, use --server or --servers-file")
	}
	for i, s := range servers {
		if s.Name == "" {
			return nil, errors.Errorf("server %d has no name", i+1)
		}
	}
	return servers, nil
}
