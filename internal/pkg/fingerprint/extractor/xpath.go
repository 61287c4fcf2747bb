package extractor

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"

	"github.com/wisdark/observer-ward/internal/pkg/utils"
)

// extractXPath 以 <?xml 开头按 XML 解析，否则按 HTML 解析
func (c *Compiled) extractXPath(x *XPath, corpus string) utils.StringSet {
	if strings.HasPrefix(strings.TrimSpace(corpus), "<?xml") {
		return c.extractXML(x, corpus)
	}
	return c.extractHTML(x, corpus)
}

func (c *Compiled) extractHTML(x *XPath, corpus string) utils.StringSet {
	result := utils.NewStringSet()
	doc, err := htmlquery.Parse(strings.NewReader(corpus))
	if err != nil {
		return result
	}

	for _, expr := range x.XPath {
		nodes, err := htmlquery.QueryAll(doc, expr)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if x.Attribute == "" {
				result.Add(c.fold(htmlquery.InnerText(n)))
				continue
			}
			for _, attr := range n.Attr {
				if attr.Key == x.Attribute {
					result.Add(c.fold(attr.Val))
					break
				}
			}
		}
	}
	return result
}

func (c *Compiled) extractXML(x *XPath, corpus string) utils.StringSet {
	result := utils.NewStringSet()
	doc, err := xmlquery.Parse(strings.NewReader(corpus))
	if err != nil {
		return result
	}

	for _, expr := range x.XPath {
		nodes, err := xmlquery.QueryAll(doc, expr)
		if err != nil {
			continue
		}
		for _, n := range nodes {
			if x.Attribute == "" {
				result.Add(c.fold(n.InnerText()))
				continue
			}
			for _, attr := range n.Attr {
				if attr.Name.Local == x.Attribute {
					result.Add(c.fold(attr.Value))
					break
				}
			}
		}
	}
	return result
}
