// Package species 定义远端生物多样性 API 的显式结果类型与查询客户端。
// 响应在边界处校验形状，不符合约定立即以 RemoteError 快速失败，
// 不把零值继续传入管线。
package species

import "github.com/naturecache/naturecache/internal/faults"

// Record 是一条观测计数记录：某类群在查询范围内的观测次数。
type Record struct {
	Count int   `json:"count"`
	Taxon Taxon `json:"taxon"`
}

// Taxon 内嵌于每条记录的类群描述。
type Taxon struct {
	ID                  int64  `json:"id"`
	Name                string `json:"name"`
	PreferredCommonName string `json:"preferred_common_name"`
	Rank                string `json:"rank"`
	IconicTaxonName     string `json:"iconic_taxon_name"`
	DefaultPhoto        *Photo `json:"default_photo"`
}

// Photo 为可选的照片元数据。
type Photo struct {
	SquareURL   string `json:"square_url"`
	MediumURL   string `json:"medium_url"`
	Attribution string `json:"attribution"`
	LicenseCode string `json:"license_code"`
}

// Page 是计数端点的一页响应。
type Page struct {
	TotalResults int      `json:"total_results"`
	Page         int      `json:"page"`
	PerPage      int      `json:"per_page"`
	Results      []Record `json:"results"`
}

// Validate 校验响应形状。Results 缺失或记录缺少类群 id 都视为
// 远端形状不匹配。
func (p *Page) Validate() error {
	if p.Results == nil {
		return &faults.RemoteError{Reason: "results field missing"}
	}
	for i := range p.Results {
		if p.Results[i].Taxon.ID == 0 {
			return &faults.RemoteError{Reason: "result without taxon id"}
		}
	}
	return nil
}

// IconicTaxa 返回全部 iconic-taxon 过滤类别，prewarm 按此列表逐一预热。
func IconicTaxa() []string {
	return []string{
		"Aves",
		"Amphibia",
		"Reptilia",
		"Mammalia",
		"Actinopterygii",
		"Mollusca",
		"Arachnida",
		"Insecta",
		"Plantae",
		"Fungi",
		"Protozoa",
		"Chromista",
	}
}
