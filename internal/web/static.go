package web

import (
	"net/http"
	"os"

	"rentalagent/internal/conf"
)

// StartAssets serves a dashboard build from the web root, if one is deployed.
func StartAssets(mux *http.ServeMux) bool {
	root := conf.GetWeb().RootPath
	if root == "" {
		return false
	}
	if stat, err := os.Stat(root); err != nil || !stat.IsDir() {
		return false
	}
	mux.Handle("/", http.FileServer(http.Dir(root)))
	return true
}
