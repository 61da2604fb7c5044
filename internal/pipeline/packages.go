package pipeline

import (
	"regexp"
	"strconv"

	"github.com/hejijunhao/droidlog/internal/filter"
	"github.com/hejijunhao/droidlog/internal/model"
)

// ActivityManager announces new processes as
// "Start proc 4321:com.example.app/u0a123 for activity ...".
var procStart = regexp.MustCompile(`Start proc (\d+):([^\s/]+)`)

func observePackage(eng *filter.Engine, r model.Record) {
	if r.Tag != "ActivityManager" {
		return
	}
	m := procStart.FindStringSubmatch(r.Message)
	if m == nil {
		return
	}
	pid, err := strconv.Atoi(m[1])
	if err != nil {
		return
	}
	eng.UpdatePIDPackage(pid, m[2])
}
