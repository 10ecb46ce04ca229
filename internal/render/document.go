package render

import "encoding/base64"

// documentURL 把 HTML 编码成 data URL，导航后才会触发生命周期事件
func documentURL(html string) string {
	return "data:text/html;charset=utf-8;base64," + base64.StdEncoding.EncodeToString([]byte(html))
}
