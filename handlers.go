package main

import (
	"fmt"
	"net/http"

	"github.com/apereo/cas-sub043/common"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", common.DefaultMIMEType)
	fmt.Fprintf(w, "{\"status\":\"OK\"}")
}

func indexHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "Central Authentication Service %s - Welcome!\n", common.APIVersion)
}
