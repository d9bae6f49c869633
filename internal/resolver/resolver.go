// Package resolver translates display city names into the terms the
// upstream weather APIs understand.
package resolver

// cityTerms maps display names to OpenWeatherMap query terms. Lookup is
// exact: no case folding, trimming or fuzzy matching.
var cityTerms = map[string]string{
	// China
	"北京":   "beijing",
	"上海":   "shanghai",
	"广州":   "guangzhou",
	"深圳":   "shenzhen",
	"香港":   "hong kong",
	"台北":   "taipei",
	"成都":   "chengdu",
	"重庆":   "chongqing",
	"西安":   "xian",
	"南京":   "nanjing",
	"杭州":   "hangzhou",
	"武汉":   "wuhan",
	"天津":   "tianjin",
	"苏州":   "suzhou",
	"厦门":   "xiamen",
	"哈尔滨":  "harbin",
	"长春":   "changchun",
	"沈阳":   "shenyang",
	"大连":   "dalian",
	"青岛":   "qingdao",
	"济南":   "jinan",
	"郑州":   "zhengzhou",
	"长沙":   "changsha",
	"福州":   "fuzhou",
	"昆明":   "kunming",
	"贵阳":   "guiyang",
	"南宁":   "nanning",
	"海口":   "haikou",
	"三亚":   "sanya",
	"拉萨":   "lhasa",
	"乌鲁木齐": "urumqi",
	"兰州":   "lanzhou",
	"西宁":   "xining",
	"银川":   "yinchuan",
	"太原":   "taiyuan",
	"石家庄":  "shijiazhuang",
	"呼和浩特": "hohhot",
	"南昌":   "nanchang",
	"合肥":   "hefei",

	// International
	"东京":      "tokyo",
	"首尔":      "seoul",
	"纽约":      "new york",
	"伦敦":      "london",
	"巴黎":      "paris",
	"柏林":      "berlin",
	"莫斯科":     "moscow",
	"悉尼":      "sydney",
	"新加坡":     "singapore",
	"曼谷":      "bangkok",
	"吉隆坡":     "kuala lumpur",
	"雅加达":     "jakarta",
	"迪拜":      "dubai",
	"开罗":      "cairo",
	"罗马":      "rome",
	"马德里":     "madrid",
	"阿姆斯特丹":   "amsterdam",
	"布鲁塞尔":    "brussels",
	"维也纳":     "vienna",
	"斯德哥尔摩":   "stockholm",
	"赫尔辛基":    "helsinki",
	"奥斯陆":     "oslo",
	"华沙":      "warsaw",
	"布达佩斯":    "budapest",
	"布拉格":     "prague",
	"雅典":      "athens",
	"伊斯坦布尔":   "istanbul",
	"孟买":      "mumbai",
	"德里":      "delhi",
	"加尔各答":    "kolkata",
	"孟加拉":     "dhaka",
	"卡拉奇":     "karachi",
	"约翰内斯堡":   "johannesburg",
	"开普敦":     "cape town",
	"墨西哥城":    "mexico city",
	"圣保罗":     "sao paulo",
	"里约热内卢":   "rio de janeiro",
	"布宜诺斯艾利斯": "buenos aires",
	"利马":      "lima",
	"圣地亚哥":    "santiago",
	"多伦多":     "toronto",
	"温哥华":     "vancouver",
	"蒙特利尔":    "montreal",
	"墨尔本":     "melbourne",
	"奥克兰":     "auckland",
	"惠灵顿":     "wellington",
}

// Resolve returns the upstream query term for name, or name itself when
// the dictionary has no entry for it.
func Resolve(name string) string {
	if term, ok := cityTerms[name]; ok {
		return term
	}
	return name
}

// Lookup reports the mapped term and whether name was in the dictionary.
func Lookup(name string) (string, bool) {
	term, ok := cityTerms[name]
	return term, ok
}

// Known returns the number of dictionary entries.
func Known() int {
	return len(cityTerms)
}
