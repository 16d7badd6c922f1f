// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package manifest

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Title returns the contents of the <title> element of the root index.html
// among files. It returns an empty string if there is no such page or it has
// no title.
func Title(files []File) (string, error) {
	for _, f := range files {
		if f.Path != "index.html" || f.Binary {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(f.Payload))
		if err != nil {
			return "", err
		}
		title := doc.Find("title").First().Text()
		return strings.Join(strings.Fields(title), " "), nil
	}
	return "", nil
}
