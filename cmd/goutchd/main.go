// Command goutchd runs the NHANES 2017-2018 cross-sectional analysis of
// gout and coronary heart disease end to end: it fetches the public-use
// tables, builds the analysis cohort, fits the model bank, and writes
// every artifact under the configured output directory. There are no
// flags; the survey cycle and output directory are fixed in config.
package main

import (
	"log"

	"github.com/jasonma1333/BMS2901Project/config"
	"github.com/jasonma1333/BMS2901Project/model"
	"github.com/jasonma1333/BMS2901Project/nhanes"
	"github.com/jasonma1333/BMS2901Project/pipeline"
)

func main() {
	cb, err := config.Load()
	if err != nil {
		log.Fatalln(err)
	}

	client := nhanes.NewClient(config.BaseURL, config.Cycle, config.CacheDir)

	res, err := pipeline.Run(client, cb, config.OutDir)
	if err != nil {
		log.Fatalln(err)
	}

	fitted := 0
	for _, f := range res.Fits {
		if f.Status == model.Fitted {
			fitted++
		}
	}
	log.Printf("done: cohort n=%d, %d of %d models fitted, artifacts in %s",
		res.Cohort.NumRow(), fitted, len(res.Fits), config.OutDir)
}
