package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/podium/internal/adapters/roster"
	"github.com/okian/podium/internal/config"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/internal/domain/scoring"
	"github.com/okian/podium/internal/domain/types"
	"github.com/okian/podium/internal/sandbox"
	"github.com/okian/podium/pkg/logger"
)

func writeConfig(t *testing.T, base string) string {
	t.Helper()
	body := fmt.Sprintf(`log_level: warn
worker_count: 2
placement:
  base_url: %[1]s
  api_key: secret
tournaments:
  spring-cup:
    sheet_url: %[2]s
    region: euw1
`, base, sandbox.SheetURL(base, "spring-cup", roster.FormatCSV))
	path := filepath.Join(t.TempDir(), "podium.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestApp(t *testing.T) {
	convey.Convey("Given the podium command line", t, func() {
		_ = logger.Init()
		app := newApp()

		convey.Convey("Then it exposes its commands", func() {
			names := []string{}
			for _, c := range app.Commands {
				names = append(names, c.Name)
			}
			convey.So(names, convey.ShouldResemble, []string{"serve", "refresh", "check"})
		})

		convey.Convey("When run against a sandbox tournament", func() {
			table := scoring.DefaultTable()
			tour := sandbox.Generate(11, "spring-cup", "euw1", 6)
			tour.PlayRound(table)
			sb := sandbox.NewServer([]*sandbox.Tournament{tour}, sandbox.WithAPIKey("X-Api-Key", "secret"))
			srv := httptest.NewServer(sb.Routes())
			defer srv.Close()

			path := writeConfig(t, srv.URL)
			var out bytes.Buffer
			app.Writer = &out

			convey.Convey("And checking the configuration", func() {
				err := app.Run([]string{"podium", "--config", path, "check"})

				convey.Convey("Then the tournaments are listed", func() {
					convey.So(err, convey.ShouldBeNil)
					convey.So(out.String(), convey.ShouldContainSubstring, "spring-cup\tregion=euw1")
					convey.So(out.String(), convey.ShouldContainSubstring, "configuration ok (1 tournaments)")
				})
			})

			convey.Convey("And refreshing the tournament", func() {
				err := app.Run([]string{"podium", "--config", path, "refresh", "--tournament", "spring-cup"})

				convey.Convey("Then the scoreboard reflects the live placements", func() {
					convey.So(err, convey.ShouldBeNil)
					var board types.Scoreboard
					convey.So(json.Unmarshal(out.Bytes(), &board), convey.ShouldBeNil)
					convey.So(board.TournamentID, convey.ShouldEqual, "spring-cup")
					convey.So(board.Round, convey.ShouldEqual, "1")
					convey.So(board.Standings, convey.ShouldHaveLength, 6)

					byID := map[string]sandbox.Player{}
					for _, p := range tour.Players() {
						byID[p.Identifier] = p
					}
					for _, row := range board.Standings {
						p := byID[row.Identifier]
						m, ok := tour.Latest(p.GameID)
						cell := row.Rounds["1"]
						if !ok {
							convey.So(cell.Pending, convey.ShouldBeTrue)
							continue
						}
						convey.So(cell.Source, convey.ShouldEqual, string(model.SourceLive))
						convey.So(cell.Points, convey.ShouldEqual, table.MustPoints(m.Placement))
					}
				})
			})

			convey.Convey("And refreshing an unknown tournament", func() {
				err := app.Run([]string{"podium", "--config", path, "refresh", "-t", "autumn-cup"})
				convey.So(err, convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When the config file does not exist", func() {
			err := app.Run([]string{"podium", "--config", "/nonexistent/podium.yaml", "check"})
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestLoadConfigDefaults(t *testing.T) {
	convey.Convey("Given no config file", t, func() {
		cfg, err := config.LoadFile(context.Background(), "")

		convey.Convey("Then the defaults validate", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Supervisor.FailureThreshold, convey.ShouldEqual, 5.0)
		})
	})
}
