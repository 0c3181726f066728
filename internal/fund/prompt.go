package fund

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the qualified funds into the analysis question sent
// to the chat bot. The instruction block demands a strict JSON array so
// the response can be machine-parsed; the bot is told to answer [] when
// nothing is worth arbitraging.
func BuildPrompt(funds []Snapshot) string {
	var b strings.Builder

	b.WriteString("以下是折价率最高的LOF/QDII基金信息：\n")
	for i, f := range funds {
		fmt.Fprintf(&b, "\n%d. 基金基本信息：", i+1)
		fmt.Fprintf(&b, "\n   基金代码：%s，基金名称：%s", f.FundCode, f.FundName)
		fmt.Fprintf(&b, "\n   现价：%s, 昨天价格：%s, 净值日期：%s", f.Price, f.PreClose, f.PriceDate)
		fmt.Fprintf(&b, "\n   涨幅：%s, 当日成交：%s（万）", f.IncreaseRate, f.Volume)
		fmt.Fprintf(&b, "\n   场内份额：%s（万份）, 场内新增：%s（万份）", f.Amount, f.AmountIncr)
		fmt.Fprintf(&b, "\n   基金净值：%s, 实时估值：%s", f.FundNav, f.EstimateValue)
		fmt.Fprintf(&b, "\n   折价率：%s, 换手率：%s", f.DiscountRate, f.TurnoverRate)
		fmt.Fprintf(&b, "\n   跟踪指数代码：%s, 跟踪指数：%s", f.IndexCode, f.IndexName)
		fmt.Fprintf(&b, "\n   指数涨幅：%s", f.IndexIncreaseRate)
		fmt.Fprintf(&b, "\n   申购费：%s, 申购状态：%s", f.ApplyFee, f.ApplyStatus)
		fmt.Fprintf(&b, "\n   赎回费：%s, 赎回状态：%s", f.RedeemFee, f.RedeemStatus)
	}

	b.WriteString("\n\n作为资深基金套利分析师，请对以上基金进行详细的套利机会分析，严格遵循以下要求：\n\n")
	b.WriteString("## 分析框架\n")
	b.WriteString("1. **套利机会判断**：明确指出每只基金是否存在套利机会\n")
	b.WriteString("2. **核心指标分析**：详细分析关键套利指标（溢价率/折价率、场内份额、成交量、流动性、申赎状态）\n")
	b.WriteString("3. **套利策略**：说明具体的套利方法\n")
	b.WriteString("4. **成本与盈利预期**：计算套利成本，给出明确的盈利空间预测\n")
	b.WriteString("5. **风险提示**：重点提示各类风险\n")
	b.WriteString("6. **操作建议**：给出清晰的操作步骤和时机建议\n\n")
	b.WriteString("## 格式要求\n")
	b.WriteString("- 严格返回JSON格式，不要包含任何其他文本或解释\n")
	b.WriteString("- 返回一个JSON数组，数组中的每个元素是一个基金分析对象\n")
	b.WriteString("- 每个基金分析对象必须包含以下字段：\n")
	b.WriteString("  - fund_code: 基金代码（字符串类型）\n")
	b.WriteString("  - fund_name: 基金名称（字符串类型）\n")
	b.WriteString("  - analysis_content: 详细的分析结果（字符串类型，可包含Markdown格式，并且需要美观的markdown文本）\n")
	b.WriteString("  - nav_dt: 净值日期（字符串类型，格式为YYYY-MM-DD）\n")
	b.WriteString("- 分析内容应详细全面，包括套利逻辑、盈利预期、优缺点分析等\n")
	b.WriteString("- 如果没有合适的套利机会，请返回：[]\n")
	b.WriteString("- 请确保JSON格式正确，可被标准JSON解析器解析\n\n")

	return b.String()
}
