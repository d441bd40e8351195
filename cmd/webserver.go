package cmd

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// serveResults starts a small embedded web server showing the benchmark
// results, for hosts where reading a terminal table is inconvenient. Blocks
// until the server stops.
func serveResults(startPort int, results []mountResult) error {
	mux := http.NewServeMux()

	tmpl := template.Must(template.New("index").Funcs(template.FuncMap{
		"speed": formatSpeed,
	}).Parse(indexTemplate))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if err := tmpl.Execute(w, results); err != nil {
			http.Error(w, fmt.Sprintf("rendering template: %v", err), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/api/results", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(results)
	})

	port := findAvailablePort(startPort)
	if port != startPort {
		log.Infof("port %d is in use, using port %d instead", startPort, port)
	}

	log.Infof("serving results on http://0.0.0.0:%d (Ctrl+C to stop)", port)
	server := &http.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", port),
		Handler: mux,
	}
	return server.ListenAndServe()
}

// findAvailablePort probes ports upward from startPort until one is free.
func findAvailablePort(startPort int) int {
	for port := startPort; port <= 65535; port++ {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			l.Close()
			return port
		}
	}
	return startPort
}

const indexTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <title>diskmark results</title>
    <style>
        body { font-family: Arial, sans-serif; color: #333; max-width: 1000px; margin: 0 auto; padding: 20px; }
        h1 { color: #2c3e50; }
        table { width: 100%; border-collapse: collapse; }
        th, td { padding: 10px 14px; border-bottom: 1px solid #ddd; text-align: left; }
        th { background-color: #f2f2f2; }
        td.na { color: #999; }
    </style>
</head>
<body>
    <h1>diskmark results</h1>
    <table>
        <tr>
            <th>Mount</th><th>Model</th>
            <th>SeqW MB/s</th><th>SeqR MB/s</th><th>RandW MB/s</th><th>RandR MB/s</th>
        </tr>
        {{range .}}
        <tr>
            <td>{{.Mount.MountPath}}</td>
            <td>{{.Mount.Model}}</td>
            <td {{if not .SeqWrite.Valid}}class="na"{{end}}>{{speed .SeqWrite}}</td>
            <td {{if not .SeqRead.Valid}}class="na"{{end}}>{{speed .SeqRead}}</td>
            <td {{if not .RandWrite.Valid}}class="na"{{end}}>{{speed .RandWrite}}</td>
            <td {{if not .RandRead.Valid}}class="na"{{end}}>{{speed .RandRead}}</td>
        </tr>
        {{end}}
    </table>
    <p>Raw data: <a href="/api/results">/api/results</a></p>
</body>
</html>
`
